package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create automations table
			CREATE TABLE automations (
				id UUID PRIMARY KEY,
				organization_id UUID NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				trigger_type VARCHAR(50) NOT NULL,
				trigger_conditions JSONB DEFAULT '{}',
				active BOOLEAN NOT NULL DEFAULT false,
				enrolled_count BIGINT NOT NULL DEFAULT 0,
				completed_count BIGINT NOT NULL DEFAULT 0,
				failed_count BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_automations_org_trigger ON automations(organization_id, trigger_type) WHERE active;
			CREATE INDEX idx_automations_organization ON automations(organization_id);

			-- Create automation_steps table
			CREATE TABLE automation_steps (
				id UUID PRIMARY KEY,
				automation_id UUID NOT NULL REFERENCES automations(id) ON DELETE CASCADE,
				position INT NOT NULL,
				kind VARCHAR(50) NOT NULL,
				config JSONB DEFAULT '{}',
				true_branch INT,
				false_branch INT,
				UNIQUE (automation_id, position),
				CHECK (position >= 1)
			);

			CREATE INDEX idx_automation_steps_automation ON automation_steps(automation_id);

			-- Create contacts table
			CREATE TABLE contacts (
				id UUID PRIMARY KEY,
				organization_id UUID NOT NULL,
				email VARCHAR(255) NOT NULL DEFAULT '',
				phone VARCHAR(50) NOT NULL DEFAULT '',
				first_name VARCHAR(255) NOT NULL DEFAULT '',
				last_name VARCHAR(255) NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL DEFAULT 'lead',
				source VARCHAR(255) NOT NULL DEFAULT '',
				tags TEXT[] NOT NULL DEFAULT '{}',
				custom_fields JSONB DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_contacts_organization ON contacts(organization_id);
			CREATE INDEX idx_contacts_tags ON contacts USING GIN(tags);

			-- Create enrollments table
			CREATE TABLE enrollments (
				id UUID PRIMARY KEY,
				automation_id UUID NOT NULL REFERENCES automations(id) ON DELETE CASCADE,
				contact_id UUID NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
				status VARCHAR(50) NOT NULL CHECK (status IN ('active', 'completed', 'failed')),
				current_step INT NOT NULL DEFAULT 1,
				trigger_payload JSONB DEFAULT '{}',
				context JSONB DEFAULT '{}',
				next_action_at TIMESTAMP WITH TIME ZONE NOT NULL,
				claimed_by VARCHAR(255),
				claimed_at TIMESTAMP WITH TIME ZONE,
				error_message TEXT,
				enrolled_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				UNIQUE (automation_id, contact_id)
			);

			CREATE INDEX idx_enrollments_due ON enrollments(next_action_at) WHERE status = 'active';
			CREATE INDEX idx_enrollments_contact ON enrollments(contact_id);

			-- Create step_logs table (append-only audit trail)
			CREATE TABLE step_logs (
				id UUID PRIMARY KEY,
				enrollment_id UUID NOT NULL REFERENCES enrollments(id) ON DELETE CASCADE,
				step_id UUID NOT NULL,
				position INT NOT NULL,
				kind VARCHAR(50) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('started', 'completed', 'failed')),
				input JSONB DEFAULT '{}',
				output JSONB DEFAULT '{}',
				error_message TEXT,
				duration_ms BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_step_logs_enrollment ON step_logs(enrollment_id, created_at);

			-- Create deals table
			CREATE TABLE deals (
				id UUID PRIMARY KEY,
				organization_id UUID NOT NULL,
				contact_id UUID NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
				pipeline_id UUID NOT NULL,
				stage_id UUID NOT NULL,
				title VARCHAR(255) NOT NULL DEFAULT '',
				value NUMERIC(14,2) NOT NULL DEFAULT 0,
				status VARCHAR(50) NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'won', 'lost')),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_deals_contact_open ON deals(contact_id, created_at) WHERE status = 'open';

			-- Create tasks table
			CREATE TABLE tasks (
				id UUID PRIMARY KEY,
				organization_id UUID NOT NULL,
				contact_id UUID NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
				enrollment_id UUID,
				title VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				priority VARCHAR(20) NOT NULL DEFAULT 'medium',
				assignee_id UUID,
				due_at TIMESTAMP WITH TIME ZONE,
				completed BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_tasks_contact ON tasks(contact_id);

			-- Create message_templates table
			CREATE TABLE message_templates (
				id UUID PRIMARY KEY,
				organization_id UUID NOT NULL,
				channel VARCHAR(20) NOT NULL CHECK (channel IN ('email', 'sms')),
				name VARCHAR(255) NOT NULL,
				subject VARCHAR(500) NOT NULL DEFAULT '',
				body TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_message_templates_org ON message_templates(organization_id, channel);

			-- Create message_logs table
			CREATE TABLE message_logs (
				id UUID PRIMARY KEY,
				organization_id UUID NOT NULL,
				contact_id UUID NOT NULL,
				enrollment_id UUID NOT NULL,
				channel VARCHAR(20) NOT NULL CHECK (channel IN ('email', 'sms')),
				recipient VARCHAR(255) NOT NULL,
				subject VARCHAR(500) NOT NULL DEFAULT '',
				body TEXT NOT NULL DEFAULT '',
				segments INT NOT NULL DEFAULT 0,
				encoding VARCHAR(20) NOT NULL DEFAULT '',
				provider_id VARCHAR(255) NOT NULL DEFAULT '',
				status VARCHAR(20) NOT NULL CHECK (status IN ('sent', 'simulated', 'failed')),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_message_logs_enrollment ON message_logs(enrollment_id);
			CREATE INDEX idx_message_logs_contact ON message_logs(contact_id, created_at);
		`,
	}
}
