package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"rebatedesk/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS reference_rows (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  rowJson TEXT NOT NULL,
  importedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS valid_codes (
  code TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS rebate_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  emailId INTEGER NOT NULL,
  itemIndex INTEGER NOT NULL,
  manufacturerProductCode TEXT,
  productId TEXT,
  productName TEXT,
  subsidiary TEXT,
  startDate TEXT,
  endDate TEXT,
  campaignPromotionRelated INTEGER,
  rebateCompensationFactor REAL,
  maxSpq INTEGER,
  isDesired INTEGER NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(emailId, itemIndex),
  FOREIGN KEY(emailId) REFERENCES emails(id)
);

CREATE TABLE IF NOT EXISTS item_issues (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  emailId INTEGER NOT NULL,
  itemIndex INTEGER NOT NULL,
  issue TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(emailId) REFERENCES emails(id)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  emailId INTEGER,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(emailId) REFERENCES emails(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// ReplaceReferenceRows swaps the stored reference dataset for a fresh import.
// The lookup table is rebuilt from these rows on every processing run, so a
// new import takes effect on the next batch.
func (d *DB) ReplaceReferenceRows(rows []internal.ReferenceRow) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM reference_rows`); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO reference_rows (rowJson) VALUES (?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		blob, err := json.Marshal(row)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(string(blob)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListReferenceRows() ([]internal.ReferenceRow, error) {
	rows, err := d.conn.Query(`SELECT rowJson FROM reference_rows ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ReferenceRow
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var row internal.ReferenceRow
		if err := json.Unmarshal([]byte(blob), &row); err != nil {
			continue
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) ReplaceValidCodes(codes []string) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM valid_codes`); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO valid_codes (code) VALUES (?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, err := stmt.Exec(code); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListValidCodes() (map[string]struct{}, error) {
	rows, err := d.conn.Query(`SELECT code FROM valid_codes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		out[code] = struct{}{}
	}
	return out, rows.Err()
}

func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO emails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.EmailRow{}, err
	}

	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, errors.New("failed to upsert email")
	}
	return *row, nil
}

func (d *DB) GetEmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	var row internal.EmailRow
	err := d.conn.QueryRow(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM emails WHERE provider = ? AND messageId = ?
`, provider, messageID).Scan(
		&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) MustEmailByProviderMessageID(provider, messageID string) (internal.EmailRow, error) {
	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, fmt.Errorf("email not found: provider=%s messageId=%s", provider, messageID)
	}
	return *row, nil
}

func (d *DB) ListEmailsByStatus(status string, limit int) ([]internal.EmailRow, error) {
	rows, err := d.conn.Query(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM emails WHERE status = ? ORDER BY receivedAt ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EmailRow
	for rows.Next() {
		var row internal.EmailRow
		if err := rows.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateEmailStatus(emailID int, status string) error {
	_, err := d.conn.Exec(`UPDATE emails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, emailID)
	return err
}

// ClearEmailProcessing removes earlier results so reprocessing an email does
// not leave stale items or issues behind.
func (d *DB) ClearEmailProcessing(emailID int) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM item_issues WHERE emailId = ?`, emailID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM rebate_items WHERE emailId = ?`, emailID); err != nil {
		return err
	}

	return tx.Commit()
}

func (d *DB) InsertRebateItems(emailID int, items []internal.RebateItem) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO rebate_items (
  emailId, itemIndex, manufacturerProductCode, productId, productName,
  subsidiary, startDate, endDate, campaignPromotionRelated,
  rebateCompensationFactor, maxSpq, isDesired
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, item := range items {
		desired := false
		if item.IsDesired != nil {
			desired = *item.IsDesired
		}
		if _, err := stmt.Exec(
			emailID, i, item.ManufacturerProductCode, item.ProductID, item.ProductName,
			item.Subsidiary, item.StartDate, item.EndDate, item.CampaignPromotionRelated,
			item.RebateCompensationFactor, item.MaxSPQ, desired,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) InsertItemIssues(emailID int, results []internal.ItemIssues) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT INTO item_issues (emailId, itemIndex, issue) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, result := range results {
		for _, issue := range result.Issues {
			if _, err := stmt.Exec(emailID, result.ItemIndex, issue); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (d *DB) InsertRun(traceID string, emailID int, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, emailId, timingsJson, countsJson) VALUES (?, ?, ?, ?)`, traceID, emailID, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// GetExportRows returns the evaluated items of one email with their
// validation issues joined in, desired items first.
func (d *DB) GetExportRows(emailID int) ([]internal.RebateExportRow, error) {
	rows, err := d.conn.Query(`
SELECT
  i.itemIndex,
  i.manufacturerProductCode,
  i.productId,
  i.productName,
  i.subsidiary,
  i.startDate,
  i.endDate,
  i.campaignPromotionRelated,
  i.rebateCompensationFactor,
  i.maxSpq,
  i.isDesired
FROM rebate_items i
WHERE i.emailId = ?
ORDER BY i.isDesired DESC, i.itemIndex ASC
`, emailID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RebateExportRow
	for rows.Next() {
		var row internal.RebateExportRow
		if err := rows.Scan(
			&row.ItemIndex,
			&row.ManufacturerProductCode,
			&row.ProductID,
			&row.ProductName,
			&row.Subsidiary,
			&row.StartDate,
			&row.EndDate,
			&row.CampaignPromotionRelated,
			&row.RebateCompensationFactor,
			&row.MaxSPQ,
			&row.IsDesired,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	issues, err := d.listIssuesByIndex(emailID)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Issues = strings.Join(issues[out[i].ItemIndex], "; ")
	}

	return out, nil
}

func (d *DB) listIssuesByIndex(emailID int) (map[int][]string, error) {
	rows, err := d.conn.Query(`SELECT itemIndex, issue FROM item_issues WHERE emailId = ? ORDER BY id ASC`, emailID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int][]string{}
	for rows.Next() {
		var index int
		var issue string
		if err := rows.Scan(&index, &issue); err != nil {
			return nil, err
		}
		out[index] = append(out[index], issue)
	}
	return out, rows.Err()
}
