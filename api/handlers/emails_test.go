package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/mailvault/mailvault/internal/enum"
	er "github.com/mailvault/mailvault/internal/errors"
	"github.com/mailvault/mailvault/internal/models"
)

type stubEmailService struct {
	detail     *models.MessageDetail
	messageErr error
}

func (s *stubEmailService) FetchMany(ctx context.Context, emails []string, view enum.FolderView, page, pageSize int) map[string]*models.FetchResult {
	return nil
}

func (s *stubEmailService) FetchListing(ctx context.Context, email string, view enum.FolderView, page, pageSize int) (*models.FolderListing, error) {
	return nil, nil
}

func (s *stubEmailService) FetchMessage(ctx context.Context, email, folder string, uid uint32) (*models.MessageDetail, error) {
	return s.detail, s.messageErr
}

func getEmailRouter(svc *stubEmailService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/accounts/:email/emails/:uid", GetEmail(svc))
	return r
}

func TestGetEmail_MissingMessageReturnsNotFound(t *testing.T) {
	svc := &stubEmailService{
		messageErr: er.NewProtocolError(true, fmt.Errorf("message uid 7 not found")),
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/accounts/a@example.com/emails/7", nil)
	getEmailRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetEmail_TransientFailureReturnsBadGateway(t *testing.T) {
	svc := &stubEmailService{
		messageErr: er.NewProtocolError(false, fmt.Errorf("connection reset by peer")),
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/accounts/a@example.com/emails/7", nil)
	getEmailRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestGetEmail_InvalidUID(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/accounts/a@example.com/emails/nope", nil)
	getEmailRouter(&stubEmailService{}).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
