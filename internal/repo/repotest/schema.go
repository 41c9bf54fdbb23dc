// Package repotest opens in-memory sqlite databases carrying the storefront schema for repository tests.
package repotest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'customer',
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE user_profiles (
  user_id TEXT PRIMARY KEY,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  date_of_birth DATETIME,
  phone TEXT,
  nic TEXT UNIQUE,
  sex TEXT NOT NULL DEFAULT 'unknown',
  address TEXT,
  agreed_to_terms INTEGER NOT NULL DEFAULT 0,
  agreed_to_privacy INTEGER NOT NULL DEFAULT 0,
  agreed_to_marketing INTEGER NOT NULL DEFAULT 0,
  emed_patient_id TEXT,
  genie_customer_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE health_verticals (
  id TEXT PRIMARY KEY,
  slug TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE questionnaires (
  id TEXT PRIMARY KEY,
  health_vertical_id TEXT NOT NULL,
  title TEXT NOT NULL,
  version INTEGER NOT NULL DEFAULT 1,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME
);`,
	`CREATE TABLE questions (
  id TEXT PRIMARY KEY,
  questionnaire_id TEXT NOT NULL,
  code TEXT NOT NULL,
  text TEXT NOT NULL,
  type TEXT NOT NULL,
  position INTEGER NOT NULL,
  options TEXT,
  UNIQUE (questionnaire_id, code)
);`,
	`CREATE TABLE user_responses (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  questionnaire_id TEXT NOT NULL,
  responses TEXT NOT NULL,
  submitted_at DATETIME NOT NULL,
  updated_at DATETIME,
  UNIQUE (user_id, questionnaire_id)
);`,
	`CREATE TABLE questionnaire_uploads (
  id TEXT PRIMARY KEY,
  user_id TEXT,
  question_code TEXT NOT NULL,
  file_name TEXT NOT NULL,
  content_type TEXT NOT NULL,
  object_key TEXT NOT NULL UNIQUE,
  size_bytes INTEGER NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE checkout_sessions (
  id TEXT PRIMARY KEY,
  session_token TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'active',
  user_id TEXT,
  customer_info TEXT,
  shipping_address TEXT,
  cart_items TEXT,
  quiz_responses TEXT,
  current_step TEXT NOT NULL,
  expires_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  order_number TEXT NOT NULL UNIQUE,
  total_amount TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'LKR',
  status TEXT NOT NULL,
  payment_flow_type TEXT NOT NULL,
  consultation_status TEXT NOT NULL,
  payment_status TEXT NOT NULL,
  product_payment_status TEXT NOT NULL,
  consultation_payment_id TEXT UNIQUE,
  product_payment_id TEXT UNIQUE,
  delivery_address TEXT,
  metadata TEXT,
  health_vertical_id TEXT,
  checkout_session_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  quantity INTEGER NOT NULL CHECK (quantity > 0),
  unit_price TEXT NOT NULL,
  months INTEGER NOT NULL DEFAULT 1,
  monthly_price TEXT NOT NULL,
  total_price TEXT NOT NULL,
  consultation_fee TEXT NOT NULL DEFAULT '0',
  prescription_required INTEGER NOT NULL DEFAULT 0,
  metadata TEXT,
  created_at DATETIME
);`,
	`CREATE TABLE order_payment_phases (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  phase TEXT NOT NULL,
  transaction_id TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL,
  amount TEXT NOT NULL,
  completed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE UNIQUE INDEX ux_order_payment_phases_active
  ON order_payment_phases (order_id, phase)
  WHERE status IN ('pending', 'completed');`,
	`CREATE TABLE payment_intents (
  id TEXT PRIMARY KEY,
  transaction_id TEXT NOT NULL UNIQUE,
  local_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  checkout_session_id TEXT,
  order_id TEXT,
  phase TEXT NOT NULL,
  amount TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'open',
  payment_url TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE payment_tokens (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  genie_customer_id TEXT NOT NULL,
  provider_token_id TEXT NOT NULL UNIQUE,
  brand TEXT,
  masked_number TEXT,
  expiry_month INTEGER,
  expiry_year INTEGER,
  is_default INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
}

// NewDB returns an isolated database with every storefront table created.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}
