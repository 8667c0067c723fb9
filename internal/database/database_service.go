package database

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq" // PostgreSQLドライバー
)

// schema はresultsテーブルの定義です。起動時に EnsureSchema で作成されます。
const schema = `
CREATE TABLE IF NOT EXISTS results (
	id         BIGSERIAL PRIMARY KEY,
	user_id    TEXT        NOT NULL,
	score      INTEGER     NOT NULL,
	lines      INTEGER     NOT NULL DEFAULT 0,
	level      INTEGER     NOT NULL DEFAULT 0,
	tier       TEXT        NOT NULL,
	memo       TEXT        NOT NULL,
	tx_hash    TEXT        NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS results_score_idx ON results (score DESC, created_at ASC);
CREATE INDEX IF NOT EXISTS results_user_idx ON results (user_id);
`

// DatabaseService provides methods for interacting with the database.
type DatabaseService struct {
	DB *sql.DB
}

// NewDatabaseService creates a new instance of DatabaseService and establishes a database connection.
func NewDatabaseService(databaseURL string) (*DatabaseService, error) {
	log.Printf("データベース接続を試行中: URLの最初の20文字: %s...", databaseURL[:min(len(databaseURL), 20)])
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		log.Printf("DatabaseService Error: sql.Openに失敗しました: %v", err)
		return nil, fmt.Errorf("データベースへの接続オブジェクト作成に失敗しました: %w", err)
	}

	if err := db.Ping(); err != nil {
		log.Printf("DatabaseService Error: db.Pingに失敗しました: %v", err)
		db.Close()
		return nil, fmt.Errorf("データベースのPingに失敗しました。接続情報やネットワークを確認してください: %w", err)
	}

	log.Println("データベースに正常に接続しました。")
	return &DatabaseService{DB: db}, nil
}

// EnsureSchema creates the tables the service needs if they do not exist yet.
func (s *DatabaseService) EnsureSchema() error {
	if _, err := s.DB.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの作成に失敗しました: %w", err)
	}
	log.Println("DatabaseService Info: スキーマを確認しました。")
	return nil
}

// Close closes the underlying connection pool.
func (s *DatabaseService) Close() error {
	return s.DB.Close()
}
