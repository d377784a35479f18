package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"

	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/status"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/models"
)

const (
	scrimsCollection  = "scrims"
	historyCollection = "edit_history"
	usersCollection   = "users"
)

// PBStore persists sessions as PocketBase records. Mutations run inside
// app.RunInTransaction, so a session is re-read and written under the same
// SQLite write transaction.
type PBStore struct {
	app core.App
}

func NewPBStore(app core.App) *PBStore {
	return &PBStore{app: app}
}

func (s *PBStore) CreateSession(_ context.Context, sess *models.Session) error {
	collection, err := s.app.FindCollectionByNameOrId(scrimsCollection)
	if err != nil {
		return fmt.Errorf("pbstore: find collection: %w", err)
	}
	record := core.NewRecord(collection)
	if sess.ID != "" {
		record.Id = sess.ID
	}
	if err := applySession(record, sess); err != nil {
		return err
	}
	if err := s.app.Save(record); err != nil {
		return fmt.Errorf("pbstore: create session: %w", err)
	}
	sess.ID = record.Id
	return nil
}

func (s *PBStore) GetSession(_ context.Context, id string) (*models.Session, error) {
	record, err := s.app.FindRecordById(scrimsCollection, id)
	if err != nil {
		return nil, &status.NotFoundError{Resource: "session", ID: id}
	}
	return recordToSession(record)
}

func (s *PBStore) UpdateSession(_ context.Context, id string, fn func(*models.Session) error) (*models.Session, error) {
	var updated *models.Session
	err := s.app.RunInTransaction(func(txApp core.App) error {
		record, err := txApp.FindRecordById(scrimsCollection, id)
		if err != nil {
			return &status.NotFoundError{Resource: "session", ID: id}
		}
		sess, err := recordToSession(record)
		if err != nil {
			return err
		}
		if err := fn(sess); err != nil {
			return err
		}
		sess.Version++
		if err := applySession(record, sess); err != nil {
			return err
		}
		if err := txApp.Save(record); err != nil {
			return fmt.Errorf("pbstore: save session %s: %w", id, err)
		}
		updated = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PBStore) DeleteSession(_ context.Context, id string) error {
	record, err := s.app.FindRecordById(scrimsCollection, id)
	if err != nil {
		return &status.NotFoundError{Resource: "session", ID: id}
	}
	if err := s.app.Delete(record); err != nil {
		return fmt.Errorf("pbstore: delete session %s: %w", id, err)
	}
	return nil
}

func (s *PBStore) ListSessions(_ context.Context, filter SessionFilter) ([]*models.Session, error) {
	expr := "id != ''"
	params := dbx.Params{}
	if filter.Region != "" {
		expr += " && region = {:region}"
		params["region"] = filter.Region
	}
	if filter.Status != "" {
		expr += " && status = {:status}"
		params["status"] = string(filter.Status)
	}
	if !filter.From.IsZero() {
		expr += " && game_start_time >= {:from}"
		params["from"] = filter.From.UTC().Format(types.DefaultDateLayout)
	}
	if !filter.To.IsZero() {
		expr += " && game_start_time <= {:to}"
		params["to"] = filter.To.UTC().Format(types.DefaultDateLayout)
	}
	records, err := s.app.FindRecordsByFilter(scrimsCollection, expr, "-game_start_time", 200, 0, params)
	if err != nil {
		return nil, fmt.Errorf("pbstore: list sessions: %w", err)
	}
	out := make([]*models.Session, 0, len(records))
	for _, record := range records {
		sess, err := recordToSession(record)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

func (s *PBStore) ListForRecovery(ctx context.Context) ([]*models.Session, error) {
	var rows []dbx.NullStringMap
	err := s.app.DB().
		NewQuery("SELECT id FROM scrims WHERE status IN ('pending', 'active') AND setup_completed = 0").
		All(&rows)
	if err != nil {
		return nil, fmt.Errorf("pbstore: recovery scan: %w", err)
	}
	out := make([]*models.Session, 0, len(rows))
	for _, row := range rows {
		id := row["id"].String
		if id == "" {
			continue
		}
		sess, err := s.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

func (s *PBStore) FindSessionByCallbackTag(_ context.Context, tag string) (*models.Session, error) {
	record, err := s.app.FindFirstRecordByFilter(scrimsCollection,
		"callback_tag = {:tag}", dbx.Params{"tag": tag})
	if err != nil {
		return nil, &status.NotFoundError{Resource: "session", ID: "tag:" + tag}
	}
	return recordToSession(record)
}

func (s *PBStore) ListEligibleUsers(_ context.Context, region string, exclude []string) ([]string, error) {
	records, err := s.app.FindRecordsByFilter(usersCollection,
		"region = {:region}", "id", 0, 0, dbx.Params{"region": region})
	if err != nil {
		return nil, fmt.Errorf("pbstore: list eligible users: %w", err)
	}
	out := make([]string, 0, len(records))
	for _, record := range records {
		if slices.Contains(exclude, record.Id) {
			continue
		}
		out = append(out, record.Id)
	}
	return out, nil
}

func (s *PBStore) AppendEditHistory(_ context.Context, sessionID string, entry models.EditEntry) error {
	collection, err := s.app.FindCollectionByNameOrId(historyCollection)
	if err != nil {
		return fmt.Errorf("pbstore: find collection: %w", err)
	}
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("pbstore: marshal edit payload: %w", err)
	}
	record := core.NewRecord(collection)
	record.Set("scrim", sessionID)
	record.Set("payload", string(payload))
	record.Set("acting_user", entry.ActingUserID)
	record.Set("previous_title", entry.PreviousTitle)
	if err := s.app.Save(record); err != nil {
		return fmt.Errorf("pbstore: append edit history: %w", err)
	}
	return nil
}

func recordToSession(record *core.Record) (*models.Session, error) {
	sess := &models.Session{
		ID:              record.Id,
		Status:          models.Status(record.GetString("status")),
		StatusUpdatedAt: record.GetDateTime("status_updated_at").Time(),
		Region:          record.GetString("region"),
		Title:           record.GetString("title"),
		GameStartTime:   record.GetDateTime("game_start_time").Time(),
		TeamOne:         models.Roster{},
		TeamTwo:         models.Roster{},
		LobbyHost:       record.GetString("lobby_host"),
		WinningTeam:     record.GetString("winning_team"),
		CreatedBy:       record.GetString("created_by"),
		Version:         record.GetInt("version"),
	}
	if err := record.UnmarshalJSONField("team_one", &sess.TeamOne); err != nil {
		return nil, fmt.Errorf("pbstore: decode team_one: %w", err)
	}
	if err := record.UnmarshalJSONField("team_two", &sess.TeamTwo); err != nil {
		return nil, fmt.Errorf("pbstore: decode team_two: %w", err)
	}
	if raw := record.GetString("casters"); raw != "" {
		if err := record.UnmarshalJSONField("casters", &sess.Casters); err != nil {
			return nil, fmt.Errorf("pbstore: decode casters: %w", err)
		}
	}
	if raw := record.GetString("tournament"); raw != "" && raw != "null" {
		var setup models.TournamentSetup
		if err := record.UnmarshalJSONField("tournament", &setup); err != nil {
			return nil, fmt.Errorf("pbstore: decode tournament: %w", err)
		}
		sess.Tournament = &setup
	}
	return sess, nil
}

func applySession(record *core.Record, sess *models.Session) error {
	record.Set("status", string(sess.Status))
	record.Set("status_updated_at", toDateTime(sess.StatusUpdatedAt))
	record.Set("region", sess.Region)
	record.Set("title", sess.Title)
	record.Set("game_start_time", toDateTime(sess.GameStartTime))
	record.Set("lobby_host", sess.LobbyHost)
	record.Set("winning_team", sess.WinningTeam)
	record.Set("created_by", sess.CreatedBy)
	record.Set("version", sess.Version)

	for field, value := range map[string]any{
		"team_one": sess.TeamOne,
		"team_two": sess.TeamTwo,
		"casters":  sess.Casters,
	} {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("pbstore: encode %s: %w", field, err)
		}
		record.Set(field, string(raw))
	}

	// setup_completed and callback_tag are mirrored out of the tournament
	// JSON so the recovery scan and callback lookup stay plain queries.
	if sess.Tournament != nil {
		raw, err := json.Marshal(sess.Tournament)
		if err != nil {
			return fmt.Errorf("pbstore: encode tournament: %w", err)
		}
		record.Set("tournament", string(raw))
		record.Set("setup_completed", sess.Tournament.SetupCompleted)
		record.Set("callback_tag", sess.Tournament.CallbackTag)
	} else {
		record.Set("tournament", "")
		record.Set("setup_completed", false)
		record.Set("callback_tag", "")
	}
	return nil
}

func toDateTime(t time.Time) types.DateTime {
	if t.IsZero() {
		return types.DateTime{}
	}
	dt, _ := types.ParseDateTime(t.UTC())
	return dt
}
