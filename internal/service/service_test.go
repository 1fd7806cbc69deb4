package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/unitradehq/unitrade-backend/internal/config"
	"github.com/unitradehq/unitrade-backend/internal/expo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection, or every pooled conn gets its own empty :memory: db
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, config.Migrate(db))
	return db
}

// fakeExpo records batches and answers with scripted tickets.
type fakeExpo struct {
	mu      sync.Mutex
	batches [][]expo.Message
	respond func(batch []expo.Message) []expo.Ticket
	status  int
}

func (f *fakeExpo) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var batch []expo.Message
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		f.batches = append(f.batches, batch)
		f.mu.Unlock()

		if f.status != 0 && f.status != http.StatusOK {
			w.WriteHeader(f.status)
			return
		}

		tickets := make([]expo.Ticket, len(batch))
		for i := range tickets {
			tickets[i] = expo.Ticket{Status: "ok", ID: "ticket"}
		}
		if f.respond != nil {
			tickets = f.respond(batch)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"data": tickets})
	}
}

func (f *fakeExpo) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func newFakeExpo(t *testing.T) (*fakeExpo, *expo.Client) {
	t.Helper()
	fake := &fakeExpo{}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	return fake, expo.NewClient(srv.URL)
}
