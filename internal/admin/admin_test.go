package admin

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divavault/scanner-core/internal/models"
	"github.com/divavault/scanner-core/internal/observer"
)

type fakeMatchStore struct {
	match        *models.Match
	getErr       error
	updateStatus models.ReviewStatus
	updateErr    error
}

func (f *fakeMatchStore) Get(id string) (*models.Match, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.match, nil
}

func (f *fakeMatchStore) UpdateReviewStatus(id string, status models.ReviewStatus) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updateStatus = status
	return nil
}

type fakeSignalWriter struct {
	inserted []models.FeedbackSignal
}

func (f *fakeSignalWriter) InsertBatch(signals []models.FeedbackSignal) error {
	f.inserted = append(f.inserted, signals...)
	return nil
}

func newReviewRequest(t *testing.T, matchID, status, actor string) *http.Request {
	t.Helper()
	body, err := json.Marshal(reviewRequest{Status: status, Actor: actor})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/matches/"+matchID+"/review", bytes.NewReader(body))
	req.SetPathValue("id", matchID)
	return req
}

func TestHandleReview_ConfirmedEmitsMatchConfirmedSignal(t *testing.T) {
	store := &fakeMatchStore{match: &models.Match{ID: "m1"}}
	writer := &fakeSignalWriter{}
	h := NewHandler(store, observer.New(writer))

	rec := httptest.NewRecorder()
	h.HandleReview(rec, newReviewRequest(t, "m1", "confirmed", "reviewer-1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ReviewConfirmed, store.updateStatus)
	require.Len(t, writer.inserted, 1)
	assert.Equal(t, models.SignalMatchConfirmed, writer.inserted[0].SignalType)
	assert.Equal(t, "reviewer-1", writer.inserted[0].Actor)
}

func TestHandleReview_RejectedAndDismissedBothEmitMatchDismissed(t *testing.T) {
	for _, status := range []string{"rejected", "dismissed"} {
		store := &fakeMatchStore{match: &models.Match{ID: "m1"}}
		writer := &fakeSignalWriter{}
		h := NewHandler(store, observer.New(writer))

		rec := httptest.NewRecorder()
		h.HandleReview(rec, newReviewRequest(t, "m1", status, ""))

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, writer.inserted, 1)
		assert.Equal(t, models.SignalMatchDismissed, writer.inserted[0].SignalType)
		assert.Equal(t, "admin", writer.inserted[0].Actor)
	}
}

func TestHandleReview_UnknownStatusReturnsBadRequest(t *testing.T) {
	store := &fakeMatchStore{match: &models.Match{ID: "m1"}}
	h := NewHandler(store, nil)

	rec := httptest.NewRecorder()
	h.HandleReview(rec, newReviewRequest(t, "m1", "bogus", ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleReview_UnknownMatchReturnsNotFound(t *testing.T) {
	store := &fakeMatchStore{match: nil}
	h := NewHandler(store, nil)

	rec := httptest.NewRecorder()
	h.HandleReview(rec, newReviewRequest(t, "missing", "confirmed", ""))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleReview_StoreErrorReturns500(t *testing.T) {
	store := &fakeMatchStore{getErr: errors.New("db down")}
	h := NewHandler(store, nil)

	rec := httptest.NewRecorder()
	h.HandleReview(rec, newReviewRequest(t, "m1", "confirmed", ""))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMount_RoutesReviewEndpoint(t *testing.T) {
	store := &fakeMatchStore{match: &models.Match{ID: "m1"}}
	h := NewHandler(store, nil)
	mux := http.NewServeMux()
	h.Mount(mux)

	rec := httptest.NewRecorder()
	body, _ := json.Marshal(reviewRequest{Status: "confirmed"})
	req := httptest.NewRequest(http.MethodPost, "/matches/m1/review", bytes.NewReader(body))
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
