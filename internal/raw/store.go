// Package raw persists inbound messages verbatim as date-partitioned JSON
// files and stages them for the structured transform. Persistence happens
// before any transformation so that every message the pipeline ever saw can
// be replayed.
package raw

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spaolacci/murmur3"
	"github.com/valyala/fastjson"

	apperrors "github.com/stratalake/stratalake/internal/errors"
	"github.com/stratalake/stratalake/internal/source"
	"github.com/stratalake/stratalake/internal/store"
	"github.com/stratalake/stratalake/internal/value"
)

// Record describes one persisted raw message.
type Record struct {
	CaptureID       string
	SourceMessageID string
	ReceivedAt      time.Time
	BodyHash        string
	Path            string
	ParseFailed     bool
	Staged          bool
}

// Store writes raw records under basePath/YYYY/MM/DD and stages them into the
// raw_events table for downstream SQL models to consume.
type Store struct {
	basePath string
	db       store.AnalyticalStore
	now      func() time.Time
}

// NewStore creates a raw store rooted at basePath.
func NewStore(basePath string, db store.AnalyticalStore) (*Store, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, apperrors.NewRawError(apperrors.CodeWriteFailed,
			fmt.Sprintf("failed to create raw directory %s", basePath), err)
	}
	return &Store{basePath: basePath, db: db, now: time.Now}, nil
}

// Save persists one message to the raw layer and, when stage is true, inserts
// a staging row so the next structured transform picks it up. Invalid
// messages are persisted but not staged, which keeps the raw layer complete
// without poisoning downstream models.
func (s *Store) Save(ctx context.Context, msg source.Message, batchID string, stage bool) (*Record, error) {
	receivedAt := s.now().UTC()
	rec := &Record{
		CaptureID:       uuid.NewString(),
		SourceMessageID: msg.MessageID,
		ReceivedAt:      receivedAt,
		BodyHash:        bodyHash(msg.Body),
	}

	body, parseFailed := normalizeBody(msg.Body)
	rec.ParseFailed = parseFailed

	envelope := buildEnvelope(rec, body)

	path, err := s.write(receivedAt, msg.MessageID, envelope)
	if err != nil {
		return nil, err
	}
	rec.Path = path

	if stage {
		if err := s.stageRecord(ctx, rec, batchID, envelope); err != nil {
			return nil, err
		}
		rec.Staged = true
	}

	return rec, nil
}

// stageRecord inserts the persisted record into raw_events under the given
// batch ID.
func (s *Store) stageRecord(ctx context.Context, rec *Record, batchID string, envelope []byte) error {
	err := s.db.Exec(ctx,
		`INSERT INTO raw_events (capture_id, batch_id, source_message_id, received_at, body_hash, raw_path, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.CaptureID, batchID, rec.SourceMessageID,
		rec.ReceivedAt.Format("2006-01-02 15:04:05"),
		rec.BodyHash, rec.Path, string(envelope))
	if err != nil {
		return apperrors.NewRawError(apperrors.CodeStageFailed,
			fmt.Sprintf("failed to stage record %s", rec.CaptureID), err)
	}
	return nil
}

// write persists the envelope atomically under the date partition for ts.
func (s *Store) write(ts time.Time, messageID string, envelope []byte) (string, error) {
	dir := filepath.Join(s.basePath,
		fmt.Sprintf("%04d", ts.Year()),
		fmt.Sprintf("%02d", ts.Month()),
		fmt.Sprintf("%02d", ts.Day()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.NewRawError(apperrors.CodeWriteFailed,
			fmt.Sprintf("failed to create partition %s", dir), err)
	}

	stamp := ts.Format("20060102_150405") + fmt.Sprintf("_%06d", ts.Nanosecond()/1000)
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.json", stamp, sanitize(messageID)))

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, envelope, 0o644); err != nil {
		return "", apperrors.NewRawError(apperrors.CodeWriteFailed,
			fmt.Sprintf("failed to write %s", tmp), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", apperrors.NewRawError(apperrors.CodeWriteFailed,
			fmt.Sprintf("failed to finalize %s", path), err)
	}

	return path, nil
}

// ListFiles returns raw file paths whose date partition falls within
// [start, end], inclusive, ordered by path.
func (s *Store) ListFiles(start, end time.Time) ([]string, error) {
	startDay := start.UTC().Truncate(24 * time.Hour)
	endDay := end.UTC().Truncate(24 * time.Hour)

	var files []string
	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		day, ok := partitionDate(s.basePath, path)
		if !ok {
			return nil
		}
		if day.Before(startDay) || day.After(endDay) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, apperrors.NewRawError(apperrors.CodeWriteFailed,
			"failed to list raw files", err)
	}
	return files, nil
}

// partitionDate extracts the YYYY/MM/DD partition of a raw file path.
func partitionDate(base, path string) (time.Time, bool) {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return time.Time{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 4 {
		return time.Time{}, false
	}
	day, err := time.Parse("2006/01/02", strings.Join(parts[:3], "/"))
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// normalizeBody returns the message body with a nested-text items field
// replaced by its structured form and a parse_failed flag appended. Bodies
// that are not JSON objects are returned unchanged with parse_failed unset;
// validation has already rejected them from staging.
func normalizeBody(raw []byte) ([]byte, bool) {
	var p fastjson.Parser
	v, err := p.ParseBytes(raw)
	if err != nil || v.Type() != fastjson.TypeObject {
		return raw, false
	}

	parseFailed := false
	items := v.Get("items")
	if items != nil && items.Type() == fastjson.TypeString {
		text := string(items.GetStringBytes())
		parsed, perr := value.Parse(text)
		if perr != nil || parsed.Kind() != value.KindList {
			// Keep the original text verbatim so the failure can be diagnosed
			// from the raw layer alone.
			parseFailed = true
			log.Printf("raw: items parse failed, keeping verbatim text: %v", perr)
		} else if rendered, merr := parsed.MarshalJSON(); merr == nil {
			v.Set("items", fastjson.MustParse(string(rendered)))
		} else {
			parseFailed = true
			log.Printf("raw: items render failed, keeping verbatim text: %v", merr)
		}
	}

	if parseFailed {
		v.Set("parse_failed", fastjson.MustParse("true"))
	} else {
		v.Set("parse_failed", fastjson.MustParse("false"))
	}

	return v.MarshalTo(nil), parseFailed
}

// buildEnvelope wraps the body with capture metadata. The body is embedded
// as-is so key order survives.
func buildEnvelope(rec *Record, body []byte) []byte {
	var b strings.Builder
	b.WriteString(`{"capture_id":"`)
	b.WriteString(rec.CaptureID)
	b.WriteString(`","source_message_id":"`)
	b.WriteString(jsonEscape(rec.SourceMessageID))
	b.WriteString(`","received_at":"`)
	b.WriteString(rec.ReceivedAt.Format(time.RFC3339Nano))
	b.WriteString(`","body_hash":"`)
	b.WriteString(rec.BodyHash)
	b.WriteString(`","body":`)
	if isJSON(body) {
		b.Write(body)
	} else {
		// Undecodable bodies are embedded as a JSON string so the envelope
		// itself stays valid JSON.
		b.WriteString(`"` + jsonEscape(string(body)) + `"`)
	}
	b.WriteString("}")
	return []byte(b.String())
}

// bodyHash returns the murmur3-128 hash of the original body as 32 hex chars.
func bodyHash(body []byte) string {
	h1, h2 := murmur3.Sum128(body)
	return fmt.Sprintf("%016x%016x", h1, h2)
}

func isJSON(b []byte) bool {
	var p fastjson.Parser
	_, err := p.ParseBytes(b)
	return err == nil
}

// sanitize keeps message IDs filesystem safe.
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}

// jsonEscape escapes a string for embedding in a JSON document.
func jsonEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}
