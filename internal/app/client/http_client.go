package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/exp/slog"

	"hammer/internal/app/client/config"
	"hammer/internal/domain/entity"
	"hammer/internal/domain/sync"
)

// APIError - ответ сервера с ошибкой вида {error, message}
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ошибка сервера (%d %s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("ошибка сервера: статус %d", e.Status)
}

// ErrUnauthorized - токен не принят сервером
var ErrUnauthorized = errors.New("не авторизован")

func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.Code == "Invalid Sync Session":
		return sync.ErrInvalidSyncSession
	case e.Status == http.StatusNotFound:
		return sync.ErrEntityNotFound
	}
	return nil
}

type httpClient struct {
	client    *http.Client
	config    *config.Config
	log       *slog.Logger
	baseURL   string
	token     string
	userID    int
	userAgent string
}

func NewHTTPClient(cfg *config.Config, log *slog.Logger) (*httpClient, error) {
	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 10,
		},
	}

	return &httpClient{
		client:    client,
		config:    cfg,
		log:       log.With(slog.String("component", "http client")),
		baseURL:   cfg.BaseURL(),
		userID:    cfg.UserID,
		userAgent: "Hammer-Client/1.0",
	}, nil
}

// SetToken устанавливает токен аутентификации
func (h *httpClient) SetToken(token string) {
	h.token = token
}

// SetUserID задает пользователя, от имени которого идут запросы
func (h *httpClient) SetUserID(id int) {
	h.userID = id
}

// HealthCheck проверяет доступность сервера
func (h *httpClient) HealthCheck(ctx context.Context) error {
	resp, err := h.doRequest(ctx, request{method: http.MethodGet, path: "/api/v1/health"})
	if err != nil {
		return fmt.Errorf("сервер недоступен: %w", err)
	}
	return h.parseResponse(resp, nil)
}

// TestAuth проверяет, что токен принадлежит пользователю
func (h *httpClient) TestAuth(ctx context.Context) error {
	resp, err := h.doRequest(ctx, request{
		method: http.MethodGet,
		path:   "/account/test_auth/" + strconv.Itoa(h.userID),
	})
	if err != nil {
		return err
	}
	return h.parseResponse(resp, nil)
}

// BeginSync открывает сессию синхронизации. В lite-режиме состояние не отправляется.
func (h *httpClient) BeginSync(ctx context.Context, project string, state *entity.ClientEntityState, lite bool) (*sync.SyncBegan, error) {
	var body []byte
	if state != nil && !lite {
		encoded, err := entity.EncodeClientState(state)
		if err != nil {
			return nil, fmt.Errorf("ошибка кодирования состояния: %w", err)
		}
		body = encoded
	}

	query := url.Values{}
	query.Set("lite", strconv.FormatBool(lite))

	resp, err := h.doRequest(ctx, request{
		method:      http.MethodPost,
		path:        h.projectPath(project, "begin_sync"),
		query:       query,
		body:        body,
		contentType: "application/octet-stream",
	})
	if err != nil {
		return nil, err
	}

	var began sync.SyncBegan
	if err := h.parseResponse(resp, &began); err != nil {
		return nil, err
	}
	return &began, nil
}

// EndSync закрывает сессию. Пустые lastSync и lastId сервер заполняет сам.
func (h *httpClient) EndSync(ctx context.Context, project, syncID string, lastSync *time.Time, lastID *int) error {
	form := url.Values{}
	if lastSync != nil {
		form.Set("lastSync", lastSync.UTC().Format(time.RFC3339Nano))
	}
	if lastID != nil {
		form.Set("lastId", strconv.Itoa(*lastID))
	}

	resp, err := h.doRequest(ctx, request{
		method:      http.MethodGet,
		path:        h.projectPath(project, "end_sync"),
		headers:     map[string]string{sync.HeaderSyncID: syncID},
		body:        []byte(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	})
	if err != nil {
		return err
	}
	return h.parseResponse(resp, nil)
}

// AbortSync освобождает сессию неудачной синхронизации без фиксации на сервере
func (h *httpClient) AbortSync(ctx context.Context, project, syncID string) error {
	resp, err := h.doRequest(ctx, request{
		method:  http.MethodGet,
		path:    h.projectPath(project, "abort_sync"),
		headers: map[string]string{sync.HeaderSyncID: syncID},
	})
	if err != nil {
		return err
	}
	return h.parseResponse(resp, nil)
}

// UploadEntity отправляет сущность и возвращает ее новый серверный хэш
func (h *httpClient) UploadEntity(ctx context.Context, project, syncID string, e entity.Entity, originalHash string, force bool) (string, error) {
	body, err := entity.Encode(e)
	if err != nil {
		return "", fmt.Errorf("ошибка маршалинга сущности: %w", err)
	}

	headers := map[string]string{
		sync.HeaderSyncID:     syncID,
		sync.HeaderEntityType: e.GetType().String(),
	}
	if originalHash != "" {
		headers[sync.HeaderOriginalHash] = originalHash
	}
	var query url.Values
	if force {
		query = url.Values{"force": {"true"}}
	}

	resp, err := h.doRequest(ctx, request{
		method:  http.MethodPost,
		path:    h.projectPath(project, "upload_entity", strconv.Itoa(e.GetID())),
		query:   query,
		headers: headers,
		body:    body,
	})
	if err != nil {
		return "", err
	}

	if resp.StatusCode == http.StatusConflict && resp.Header.Get(sync.HeaderEntityType) != "" {
		server, err := h.readEntity(resp)
		if err != nil {
			return "", fmt.Errorf("ошибка разбора конфликта: %w", err)
		}
		return "", &sync.EntityConflictError{Entity: server}
	}

	var saved sync.SaveEntityResponse
	if err := h.parseResponse(resp, &saved); err != nil {
		return "", err
	}
	return saved.NewHash, nil
}

// DownloadEntity скачивает сущность. modified=false, если у клиента уже эта версия.
func (h *httpClient) DownloadEntity(ctx context.Context, project, syncID string, id int, localHash string) (entity.Entity, bool, error) {
	headers := map[string]string{sync.HeaderSyncID: syncID}
	if localHash != "" {
		headers[sync.HeaderEntityHash] = localHash
	}

	resp, err := h.doRequest(ctx, request{
		method:  http.MethodGet,
		path:    h.projectPath(project, "download_entity", strconv.Itoa(id)),
		headers: headers,
	})
	if err != nil {
		return nil, false, err
	}

	switch resp.StatusCode {
	case http.StatusNotModified:
		resp.Body.Close()
		return nil, false, nil
	case http.StatusOK:
		e, err := h.readEntity(resp)
		if err != nil {
			return nil, false, err
		}
		return e, true, nil
	}
	return nil, false, h.parseResponse(resp, nil)
}

// DeleteEntity удаляет сущность на сервере. false, если ее там уже нет.
func (h *httpClient) DeleteEntity(ctx context.Context, project, syncID string, id int) (bool, error) {
	resp, err := h.doRequest(ctx, request{
		method:  http.MethodGet,
		path:    h.projectPath(project, "delete_entity", strconv.Itoa(id)),
		headers: map[string]string{sync.HeaderSyncID: syncID},
	})
	if err != nil {
		return false, err
	}

	var deleted sync.DeleteEntityResponse
	if err := h.parseResponse(resp, &deleted); err != nil {
		return false, err
	}
	return deleted.Deleted, nil
}

func (h *httpClient) projectPath(project string, parts ...string) string {
	path := "/project/" + strconv.Itoa(h.userID) + "/" + url.PathEscape(project)
	for _, p := range parts {
		path += "/" + p
	}
	return path
}

type request struct {
	method      string
	path        string
	query       url.Values
	headers     map[string]string
	body        []byte
	contentType string
}

func (h *httpClient) doRequest(ctx context.Context, r request) (*http.Response, error) {
	var reqBody io.Reader
	if r.body != nil {
		reqBody = bytes.NewReader(r.body)
	}

	target := h.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	contentType := r.contentType
	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", h.userAgent)
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	h.log.Debug("Отправка запроса",
		slog.String("method", r.method),
		slog.String("url", req.URL.String()),
	)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}

	return resp, nil
}

func (h *httpClient) parseResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	h.log.Debug("Получен ответ",
		slog.Int("status", resp.StatusCode),
		slog.Int("size", len(body)),
	)

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var errResp sync.ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil {
			apiErr.Code = errResp.Error
			apiErr.Message = errResp.Message
		}
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("ошибка парсинга ответа: %w", err)
		}
	}

	return nil
}

// readEntity декодирует сущность из тела, тип берется из X-Entity-Type
func (h *httpClient) readEntity(resp *http.Response) (entity.Entity, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	typ, err := entity.ParseType(resp.Header.Get(sync.HeaderEntityType))
	if err != nil {
		return nil, fmt.Errorf("сервер не указал тип сущности: %w", err)
	}
	return entity.Decode(typ, body)
}
