package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Contact store. The CRM CRUD surface owns writes; the automation
			-- core reads and occasionally bumps follow-up bookkeeping.
			CREATE TABLE contacts (
				id UUID PRIMARY KEY,
				first_name VARCHAR(255) NOT NULL DEFAULT '',
				last_name VARCHAR(255) NOT NULL DEFAULT '',
				email VARCHAR(255) NOT NULL DEFAULT '',
				company VARCHAR(255) NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL,
				source VARCHAR(255) NOT NULL DEFAULT '',
				lead_score DOUBLE PRECISION NOT NULL DEFAULT 0,
				tags JSONB,
				custom_fields JSONB,
				cadence VARCHAR(50) NOT NULL DEFAULT 'none',
				next_follow_up_at TIMESTAMP WITH TIME ZONE,
				last_contacted_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_contacts_status ON contacts(status);
			CREATE INDEX idx_contacts_next_follow_up_at ON contacts(next_follow_up_at);

			-- Workflow graph definitions. The node arena is stored as one
			-- JSONB document; graphs are read whole for traversal.
			CREATE TABLE workflow_graphs (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL,
				version INT NOT NULL DEFAULT 1,
				nodes JSONB NOT NULL,
				entry_node_id VARCHAR(255) NOT NULL,
				owner VARCHAR(255) NOT NULL DEFAULT '',
				total_enrolled INT NOT NULL DEFAULT 0,
				total_completed INT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				published_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflow_graphs_status ON workflow_graphs(status);
			CREATE INDEX idx_workflow_graphs_owner ON workflow_graphs(owner);

			-- Per-contact execution state. One live enrollment per
			-- (graph, contact) pair, enforced here rather than in code.
			CREATE TABLE enrollments (
				id UUID PRIMARY KEY,
				graph_id UUID NOT NULL REFERENCES workflow_graphs(id) ON DELETE CASCADE,
				graph_version INT NOT NULL DEFAULT 1,
				contact_id UUID NOT NULL,
				current_node_id VARCHAR(255) NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL,
				ab_assignments JSONB,
				resume_at TIMESTAMP WITH TIME ZONE,
				execution_log JSONB,
				enrolled_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (graph_id, contact_id)
			);

			CREATE INDEX idx_enrollments_contact_id ON enrollments(contact_id);
			CREATE INDEX idx_enrollments_resume ON enrollments(status, resume_at);

			CREATE TABLE automation_rules (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				trigger_type VARCHAR(50) NOT NULL,
				trigger_config JSONB,
				task_title_template TEXT NOT NULL,
				task_description_template TEXT NOT NULL DEFAULT '',
				task_priority VARCHAR(50) NOT NULL DEFAULT 'medium',
				delay_hours INT NOT NULL DEFAULT 0,
				reminder_offset_hours INT NOT NULL DEFAULT 0,
				is_active BOOLEAN NOT NULL DEFAULT true,
				times_triggered INT NOT NULL DEFAULT 0,
				tasks_created INT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_automation_rules_trigger ON automation_rules(trigger_type, is_active);

			CREATE TABLE scheduled_batches (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				type VARCHAR(50) NOT NULL,
				contact_id UUID NOT NULL,
				tasks_count INT NOT NULL DEFAULT 0,
				tasks_completed INT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_scheduled_batches_contact_id ON scheduled_batches(contact_id);

			CREATE TABLE scheduled_tasks (
				id UUID PRIMARY KEY,
				contact_id UUID NOT NULL,
				batch_id UUID REFERENCES scheduled_batches(id) ON DELETE SET NULL,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				priority VARCHAR(50) NOT NULL DEFAULT 'medium',
				status VARCHAR(50) NOT NULL DEFAULT 'todo',
				due_at TIMESTAMP WITH TIME ZONE NOT NULL,
				reminder_enabled BOOLEAN NOT NULL DEFAULT false,
				reminder_at TIMESTAMP WITH TIME ZONE,
				reminder_sent_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_scheduled_tasks_contact_id ON scheduled_tasks(contact_id);
			CREATE INDEX idx_scheduled_tasks_reminder ON scheduled_tasks(status, reminder_enabled, reminder_at);

			-- De-duplication markers. The partial unique index is the guard
			-- against concurrent duplicate triggers: two racing inserts for
			-- the same (contact, kind) cannot both commit.
			CREATE TABLE recommendations (
				id UUID PRIMARY KEY,
				contact_id UUID NOT NULL,
				kind VARCHAR(255) NOT NULL,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				dismissed BOOLEAN NOT NULL DEFAULT false,
				expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE UNIQUE INDEX idx_recommendations_active
				ON recommendations(contact_id, kind)
				WHERE dismissed = false;
		`,
	}
}
