package messaging

const (
	// EncodingGSM7 covers messages restricted to the GSM 03.38 basic set.
	EncodingGSM7 = "GSM-7"
	// EncodingUCS2 is used when any character falls outside that set.
	EncodingUCS2 = "UCS-2"

	gsmSingleLimit  = 160
	gsmMultiLimit   = 153
	ucs2SingleLimit = 70
	ucs2MultiLimit  = 67
)

// MessageInfo describes how a message body will be split into SMS segments.
type MessageInfo struct {
	Length   int    `json:"length"`
	Segments int    `json:"segments"`
	Encoding string `json:"encoding"`
}

// gsmBasic holds the GSM 03.38 basic character set. Extension-table
// characters count as two septets.
var gsmBasic = func() map[rune]bool {
	const chars = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà"

	set := make(map[rune]bool, len(chars))
	for _, r := range chars {
		set[r] = true
	}

	return set
}()

var gsmExtension = map[rune]bool{
	'^': true, '{': true, '}': true, '\\': true,
	'[': true, ']': true, '~': true, '|': true, '€': true,
}

// GetMessageInfo computes the length, segment count and encoding for an SMS
// body using the GSM-7 and UCS-2 segmentation rules.
func GetMessageInfo(message string) MessageInfo {
	length := 0
	gsm := true

	for _, r := range message {
		switch {
		case gsmBasic[r]:
			length++
		case gsmExtension[r]:
			length += 2
		default:
			gsm = false
		}
	}

	if !gsm {
		length = len([]rune(message))

		return MessageInfo{
			Length:   length,
			Segments: segmentCount(length, ucs2SingleLimit, ucs2MultiLimit),
			Encoding: EncodingUCS2,
		}
	}

	return MessageInfo{
		Length:   length,
		Segments: segmentCount(length, gsmSingleLimit, gsmMultiLimit),
		Encoding: EncodingGSM7,
	}
}

func segmentCount(length, singleLimit, multiLimit int) int {
	if length == 0 {
		return 1
	}

	if length <= singleLimit {
		return 1
	}

	return (length + multiLimit - 1) / multiLimit
}
