package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

func InitDB(dbURL string) (*sql.DB, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// RunMigrations applies the schema. Every statement must stay idempotent:
// the list is replayed on each boot.
func RunMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,

		// --- SaaS console ---
		`CREATE TABLE IF NOT EXISTS plans (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			code VARCHAR(50) UNIQUE NOT NULL,
			name VARCHAR(120) NOT NULL,
			monthly_price NUMERIC(12,2) NOT NULL DEFAULT 0,
			max_users INTEGER NOT NULL DEFAULT 1,
			modules TEXT[] NOT NULL DEFAULT '{}',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS tenants (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			name VARCHAR(255) NOT NULL,
			document VARCHAR(20),
			plan_code VARCHAR(50) NOT NULL REFERENCES plans(code) ON UPDATE CASCADE,
			status VARCHAR(20) NOT NULL DEFAULT 'ativo',
			modules_enabled TEXT[] NOT NULL DEFAULT '{}',
			modules_disabled TEXT[] NOT NULL DEFAULT '{}',
			whatsapp_api_url TEXT,
			whatsapp_token TEXT,
			created_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS invoices (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			month CHAR(7) NOT NULL,
			plan_code VARCHAR(50) NOT NULL,
			amount NUMERIC(12,2) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'aberta',
			due_date DATE NOT NULL,
			paid_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT NOW(),
			UNIQUE(tenant_id, month)
		)`,

		// --- Identity ---
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL,
			role VARCHAR(20) NOT NULL DEFAULT 'member',
			super_admin BOOLEAN NOT NULL DEFAULT FALSE,
			avatar TEXT,
			totp_secret VARCHAR(255),
			totp_enabled BOOLEAN DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id UUID REFERENCES users(id) ON DELETE CASCADE,
			refresh_token VARCHAR(500) UNIQUE NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS invitations (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			email VARCHAR(255) NOT NULL,
			role VARCHAR(20) NOT NULL DEFAULT 'member',
			invited_by UUID REFERENCES users(id) ON DELETE SET NULL,
			token VARCHAR(255) UNIQUE NOT NULL,
			status VARCHAR(20) DEFAULT 'pending',
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS audit_logs (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			tenant_id UUID REFERENCES tenants(id) ON DELETE CASCADE,
			user_id UUID REFERENCES users(id) ON DELETE SET NULL,
			action VARCHAR(100) NOT NULL,
			entity VARCHAR(50) NOT NULL,
			entity_id VARCHAR(64),
			created_at TIMESTAMP DEFAULT NOW()
		)`,

		// --- Finance core ---
		`CREATE TABLE IF NOT EXISTS categories (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			name VARCHAR(120) NOT NULL,
			type VARCHAR(10) NOT NULL,
			color VARCHAR(16),
			parent_id UUID REFERENCES categories(id) ON DELETE SET NULL,
			dre_group VARCHAR(40) NOT NULL DEFAULT 'outras',
			created_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW(),
			UNIQUE(tenant_id, name, type)
		)`,

		`CREATE TABLE IF NOT EXISTS bank_accounts (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			name VARCHAR(120) NOT NULL,
			bank VARCHAR(120),
			agency VARCHAR(20),
			number VARCHAR(30),
			type VARCHAR(20) NOT NULL DEFAULT 'corrente',
			initial_balance NUMERIC(14,2) NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS pipeline_stages (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			name VARCHAR(80) NOT NULL,
			color VARCHAR(16),
			position INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS contacts (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			kind VARCHAR(12) NOT NULL,
			name VARCHAR(255) NOT NULL,
			document VARCHAR(20),
			email VARCHAR(255),
			phone VARCHAR(30),
			notes TEXT,
			stage_id UUID REFERENCES pipeline_stages(id) ON DELETE SET NULL,
			position INTEGER NOT NULL DEFAULT 0,
			deal_value NUMERIC(14,2) NOT NULL DEFAULT 0,
			deleted_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS recurring_templates (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			description VARCHAR(255) NOT NULL,
			type VARCHAR(15) NOT NULL,
			amount NUMERIC(14,2) NOT NULL CHECK (amount > 0),
			category_id UUID REFERENCES categories(id) ON DELETE SET NULL,
			bank_account_id UUID REFERENCES bank_accounts(id) ON DELETE SET NULL,
			contact_id UUID REFERENCES contacts(id) ON DELETE SET NULL,
			frequency VARCHAR(15) NOT NULL,
			start_date DATE NOT NULL,
			end_date DATE,
			next_date DATE NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			auto_pay BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			type VARCHAR(15) NOT NULL,
			description VARCHAR(255) NOT NULL,
			amount NUMERIC(14,2) NOT NULL CHECK (amount > 0),
			date DATE NOT NULL,
			category_id UUID REFERENCES categories(id) ON DELETE SET NULL,
			bank_account_id UUID REFERENCES bank_accounts(id) ON DELETE SET NULL,
			contact_id UUID REFERENCES contacts(id) ON DELETE SET NULL,
			status VARCHAR(10) NOT NULL DEFAULT 'pago',
			payment_method VARCHAR(30),
			notes TEXT,
			tags TEXT[] NOT NULL DEFAULT '{}',
			installment_id UUID,
			recurring_id UUID REFERENCES recurring_templates(id) ON DELETE SET NULL,
			transfer_group UUID,
			transfer_direction VARCHAR(10),
			reconciled BOOLEAN NOT NULL DEFAULT FALSE,
			created_by UUID REFERENCES users(id) ON DELETE SET NULL,
			deleted_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS installments (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			group_id UUID NOT NULL,
			kind VARCHAR(10) NOT NULL,
			description VARCHAR(255) NOT NULL,
			number INTEGER NOT NULL,
			total_count INTEGER NOT NULL,
			amount NUMERIC(14,2) NOT NULL CHECK (amount > 0),
			due_date DATE NOT NULL,
			status VARCHAR(12) NOT NULL DEFAULT 'pendente',
			paid_at TIMESTAMP,
			contact_id UUID REFERENCES contacts(id) ON DELETE SET NULL,
			category_id UUID REFERENCES categories(id) ON DELETE SET NULL,
			bank_account_id UUID REFERENCES bank_accounts(id) ON DELETE SET NULL,
			transaction_id UUID REFERENCES transactions(id) ON DELETE SET NULL,
			created_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS statement_lines (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			bank_account_id UUID NOT NULL REFERENCES bank_accounts(id) ON DELETE CASCADE,
			date DATE NOT NULL,
			description VARCHAR(255) NOT NULL,
			amount NUMERIC(14,2) NOT NULL,
			hash VARCHAR(64) NOT NULL,
			status VARCHAR(12) NOT NULL DEFAULT 'pendente',
			transaction_id UUID REFERENCES transactions(id) ON DELETE SET NULL,
			created_at TIMESTAMP DEFAULT NOW(),
			UNIQUE(tenant_id, bank_account_id, hash)
		)`,

		`CREATE TABLE IF NOT EXISTS budget_items (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			year INTEGER NOT NULL,
			month INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
			category_id UUID NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
			amount NUMERIC(14,2) NOT NULL DEFAULT 0,
			UNIQUE(tenant_id, year, month, category_id)
		)`,

		// --- Inventory ---
		`CREATE TABLE IF NOT EXISTS products (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			sku VARCHAR(60) NOT NULL,
			name VARCHAR(255) NOT NULL,
			unit VARCHAR(10) NOT NULL DEFAULT 'un',
			cost NUMERIC(14,2) NOT NULL DEFAULT 0,
			price NUMERIC(14,2) NOT NULL DEFAULT 0,
			quantity NUMERIC(14,3) NOT NULL DEFAULT 0,
			min_quantity NUMERIC(14,3) NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW(),
			UNIQUE(tenant_id, sku)
		)`,

		`CREATE TABLE IF NOT EXISTS stock_movements (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			product_id UUID NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			type VARCHAR(10) NOT NULL,
			quantity NUMERIC(14,3) NOT NULL,
			balance_after NUMERIC(14,3) NOT NULL,
			note TEXT,
			created_by UUID REFERENCES users(id) ON DELETE SET NULL,
			created_at TIMESTAMP DEFAULT NOW()
		)`,

		// --- WhatsApp reports ---
		`CREATE TABLE IF NOT EXISTS scheduled_reports (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			name VARCHAR(120) NOT NULL,
			report VARCHAR(30) NOT NULL,
			phones TEXT[] NOT NULL DEFAULT '{}',
			frequency VARCHAR(10) NOT NULL,
			weekday INTEGER NOT NULL DEFAULT 1,
			month_day INTEGER NOT NULL DEFAULT 1,
			send_time VARCHAR(5) NOT NULL DEFAULT '08:00',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			last_sent_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS report_dispatches (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			report_id UUID NOT NULL REFERENCES scheduled_reports(id) ON DELETE CASCADE,
			trigger VARCHAR(10) NOT NULL DEFAULT 'manual',
			status VARCHAR(10) NOT NULL,
			error TEXT,
			sent_at TIMESTAMP DEFAULT NOW()
		)`,

		// --- AI ---
		`CREATE TABLE IF NOT EXISTS ai_conversations (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			user_id UUID REFERENCES users(id) ON DELETE CASCADE,
			title VARCHAR(255) NOT NULL,
			created_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS ai_messages (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			conversation_id UUID NOT NULL REFERENCES ai_conversations(id) ON DELETE CASCADE,
			role VARCHAR(10) NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS label_mappings (
			normalized_label VARCHAR(255) PRIMARY KEY,
			category VARCHAR(120) NOT NULL,
			source VARCHAR(10) NOT NULL DEFAULT 'AI',
			created_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_users_tenant_id ON users(tenant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_invitations_token ON invitations(token)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_tenant_date ON transactions(tenant_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_bank_account ON transactions(bank_account_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_recurring_date ON transactions(recurring_id, date) WHERE recurring_id IS NOT NULL AND deleted_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_installments_tenant_due ON installments(tenant_id, due_date)`,
		`CREATE INDEX IF NOT EXISTS idx_installments_group ON installments(group_id)`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_tenant_kind ON contacts(tenant_id, kind)`,
		`CREATE INDEX IF NOT EXISTS idx_statement_lines_account ON statement_lines(bank_account_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_tenant_id ON audit_logs(tenant_id)`,

		`INSERT INTO plans (code, name, monthly_price, max_users, modules) VALUES
			('basico', 'Básico', 49.90, 2, '{financeiro,relatorios,recorrencias}'),
			('profissional', 'Profissional', 129.90, 5, '{financeiro,relatorios,recorrencias,crm,conciliacao,orcamento,whatsapp}'),
			('empresarial', 'Empresarial', 299.90, 20, '{financeiro,relatorios,recorrencias,crm,conciliacao,orcamento,whatsapp,estoque,ia}')
		ON CONFLICT (code) DO NOTHING`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	return nil
}
