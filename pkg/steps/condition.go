package steps

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/relaycrm/relay/pkg/models"
)

// executeCondition evaluates one operator against a contact field and
// reports the verdict through BranchResult. It never fails; anything it
// cannot interpret evaluates to true so a misconfigured condition falls
// through the true branch rather than halting the run.
func executeCondition(_ *models.Enrollment, contact *models.Contact, step *models.Step) Outcome {
	config, err := DecodeConfig[ConditionConfig](step.Config)
	if err != nil {
		config = ConditionConfig{}
	}

	value := contactField(contact, config.Field)
	result := evaluate(config.Operator, value, config.Value)

	return Outcome{
		Success:      true,
		BranchResult: &result,
		Output: map[string]any{
			"field":    config.Field,
			"operator": config.Operator,
			"result":   result,
		},
	}
}

// contactField resolves a condition field against the contact: direct
// identity fields by name, "tags" as the tag set, anything else as a custom
// field lookup.
func contactField(contact *models.Contact, field string) any {
	switch field {
	case "email":
		return contact.Email
	case "phone":
		return contact.Phone
	case "first_name":
		return contact.FirstName
	case "last_name":
		return contact.LastName
	case "status":
		return contact.Status
	case "source":
		return contact.Source
	case "tags":
		return contact.Tags
	default:
		if contact.CustomFields == nil {
			return nil
		}

		return contact.CustomFields[field]
	}
}

func evaluate(operator string, value, expected any) bool {
	switch operator {
	case "equals":
		return valueString(value) == valueString(expected)
	case "not_equals":
		return valueString(value) != valueString(expected)
	case "contains":
		return contains(value, expected)
	case "not_contains":
		return !contains(value, expected)
	case "is_empty":
		return isEmpty(value)
	case "is_not_empty":
		return !isEmpty(value)
	case "greater_than":
		actual, expectedNum, ok := numericPair(value, expected)

		return ok && actual > expectedNum
	case "less_than":
		actual, expectedNum, ok := numericPair(value, expected)

		return ok && actual < expectedNum
	default:
		return true
	}
}

// contains is set membership for collection-valued fields and substring
// matching for strings.
func contains(value, expected any) bool {
	needle := valueString(expected)

	switch v := value.(type) {
	case []string:
		for _, item := range v {
			if item == needle {
				return true
			}
		}

		return false
	case []any:
		for _, item := range v {
			if valueString(item) == needle {
				return true
			}
		}

		return false
	case string:
		return strings.Contains(v, needle)
	default:
		return strings.Contains(valueString(value), needle)
	}
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	default:
		return valueString(value) == ""
	}
}

func numericPair(value, expected any) (float64, float64, bool) {
	actual, ok := toFloat(value)
	if !ok {
		return 0, 0, false
	}

	expectedNum, ok := toFloat(expected)
	if !ok {
		return 0, 0, false
	}

	return actual, expectedNum, true
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(v, 64)

		return parsed, err == nil
	default:
		return 0, false
	}
}

func valueString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
