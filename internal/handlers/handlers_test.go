package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/unitradehq/unitrade-backend/internal/config"
	"github.com/unitradehq/unitrade-backend/internal/expo"
	"github.com/unitradehq/unitrade-backend/internal/paystack"
	"github.com/unitradehq/unitrade-backend/internal/service"
)

type testEnv struct {
	T  *testing.T
	E  *echo.Echo
	DB *gorm.DB
	O  *OrderHandler
	P  *PushTokenHandler

	expoBatches *[][]expo.Message
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, config.Migrate(db))

	var batches [][]expo.Message
	expoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch []expo.Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&batch))
		batches = append(batches, batch)

		tickets := make([]map[string]string, len(batch))
		for i := range tickets {
			tickets[i] = map[string]string{"status": "ok", "id": "ticket"}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"data": tickets})
	}))
	t.Cleanup(expoSrv.Close)

	paySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  true,
			"message": "ok",
			"data": map[string]interface{}{
				"authorization_url": "https://checkout.paystack.com/abc123",
				"status":            "success",
			},
		})
	}))
	t.Cleanup(paySrv.Close)

	dispatcher := &service.NotificationService{DB: db, Push: expo.NewClient(expoSrv.URL)}
	triggers := &service.NotificationTriggers{DB: db, Dispatcher: dispatcher}
	payments := &service.PaymentService{
		DB:              db,
		Gateway:         paystack.NewClient("sk_test", paySrv.URL),
		CallbackBaseURL: "http://localhost:3000",
		Triggers:        triggers,
	}
	orders := &service.OrderService{DB: db, Triggers: triggers}

	return &testEnv{
		T:           t,
		E:           echo.New(),
		DB:          db,
		O:           &OrderHandler{Orders: orders, Payments: payments},
		P:           &PushTokenHandler{DB: db, Dispatcher: dispatcher},
		expoBatches: &batches,
	}
}

// doJSONRequest builds an echo context carrying the authenticated caller the
// jwt middleware would have set.
func (env *testEnv) doJSONRequest(method, path string, body interface{}, userID uint, role string) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	if userID != 0 {
		c.Set("userID", userID)
		c.Set("role", role)
	}
	return rec, c
}
