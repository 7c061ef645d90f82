package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prohmpiriya/multicore-crm/pkg/logger"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionCreate    AuditAction = "create"
	AuditActionUpdate    AuditAction = "update"
	AuditActionDelete    AuditAction = "delete"
	AuditActionLogin     AuditAction = "login"
	AuditActionRegister  AuditAction = "register"
	AuditActionProvision AuditAction = "provision"
	AuditActionOnboard   AuditAction = "onboard"
	AuditActionView      AuditAction = "view"
)

// Context keys handlers may set to enrich the audit entry
const (
	ContextKeyAuditResourceType = "audit_resource_type"
	ContextKeyAuditResourceID   = "audit_resource_id"
	ContextKeyAuditMetadata     = "audit_metadata"
	contextKeyAuditSkip         = "audit_skip"
)

// AuditEntry represents a single audit log entry
type AuditEntry struct {
	ID           string                 `json:"id"`
	TenantID     *string                `json:"tenant_id,omitempty"`
	IdentityID   *string                `json:"identity_id,omitempty"`
	Email        string                 `json:"email,omitempty"`
	Roles        []string               `json:"roles,omitempty"`
	Action       AuditAction            `json:"action"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   *string                `json:"resource_id,omitempty"`
	Method       string                 `json:"method"`
	Path         string                 `json:"path"`
	Status       int                    `json:"status"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	UserAgent    string                 `json:"user_agent,omitempty"`
	RequestID    string                 `json:"request_id,omitempty"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// AuditSink persists batches of entries
type AuditSink interface {
	InsertAuditEntries(ctx context.Context, entries []*AuditEntry) error
}

// AuditConfig holds configuration for the audit middleware
type AuditConfig struct {
	Sink          AuditSink
	BufferSize    int
	FlushInterval time.Duration
	BatchSize     int
	// SkipPaths are path prefixes never audited
	SkipPaths []string
	// SkipMethods defaults to GET, HEAD, OPTIONS
	SkipMethods []string
	// CaptureBody records the JSON request body with sensitive fields masked
	CaptureBody     bool
	MaxBodySize     int
	SensitiveFields []string
	Log             *logger.Logger
}

// DefaultAuditConfig returns default configuration
func DefaultAuditConfig(sink AuditSink) *AuditConfig {
	return &AuditConfig{
		Sink:            sink,
		BufferSize:      1000,
		FlushInterval:   5 * time.Second,
		BatchSize:       100,
		SkipPaths:       []string{"/health", "/ready"},
		SkipMethods:     []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		CaptureBody:     true,
		MaxBodySize:     10 * 1024,
		SensitiveFields: []string{"password", "token", "secret"},
	}
}

// AuditLogger buffers entries and writes them to the sink in batches
type AuditLogger struct {
	config    *AuditConfig
	log       *logger.Logger
	buffer    chan *AuditEntry
	wg        sync.WaitGroup
	closeOnce sync.Once
	dropped   uint64
	droppedMu sync.Mutex
}

// NewAuditLogger starts the background writer
func NewAuditLogger(config *AuditConfig) *AuditLogger {
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = 10 * 1024
	}
	log := config.Log
	if log == nil {
		log = logger.Get()
	}

	al := &AuditLogger{
		config: config,
		log:    log,
		buffer: make(chan *AuditEntry, config.BufferSize),
	}

	al.wg.Add(1)
	go al.worker()

	return al
}

// Log queues an entry without blocking; entries are dropped when the buffer is full
func (al *AuditLogger) Log(entry *AuditEntry) {
	select {
	case al.buffer <- entry:
	default:
		al.droppedMu.Lock()
		al.dropped++
		al.droppedMu.Unlock()
	}
}

// Dropped returns how many entries were discarded on a full buffer
func (al *AuditLogger) Dropped() uint64 {
	al.droppedMu.Lock()
	defer al.droppedMu.Unlock()
	return al.dropped
}

// Close flushes pending entries and stops the writer
func (al *AuditLogger) Close() error {
	al.closeOnce.Do(func() {
		close(al.buffer)
		al.wg.Wait()
	})
	return nil
}

func (al *AuditLogger) worker() {
	defer al.wg.Done()

	ticker := time.NewTicker(al.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]*AuditEntry, 0, al.config.BatchSize)

	for {
		select {
		case entry, ok := <-al.buffer:
			if !ok {
				al.flush(batch)
				return
			}
			batch = append(batch, entry)
			if len(batch) >= al.config.BatchSize {
				al.flush(batch)
				batch = make([]*AuditEntry, 0, al.config.BatchSize)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				al.flush(batch)
				batch = make([]*AuditEntry, 0, al.config.BatchSize)
			}
		}
	}
}

func (al *AuditLogger) flush(entries []*AuditEntry) {
	if len(entries) == 0 || al.config.Sink == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := al.config.Sink.InsertAuditEntries(ctx, entries); err != nil {
		al.log.Warn("audit flush failed", zap.Int("entries", len(entries)), zap.Error(err))
	}
}

// AuditMiddleware records mutating requests after they are handled.
// It must run after Authenticate so the principal is known.
func AuditMiddleware(al *AuditLogger) gin.HandlerFunc {
	config := al.config

	return func(c *gin.Context) {
		for _, path := range config.SkipPaths {
			if strings.HasPrefix(c.Request.URL.Path, path) {
				c.Next()
				return
			}
		}
		for _, method := range config.SkipMethods {
			if c.Request.Method == method {
				c.Next()
				return
			}
		}

		var payload map[string]interface{}
		if config.CaptureBody && c.Request.Body != nil {
			body := c.Request.Body
			bodyBytes, err := io.ReadAll(io.LimitReader(body, int64(config.MaxBodySize)))
			// The handler sees the captured prefix followed by the unread rest.
			c.Request.Body = readCloser{
				Reader: io.MultiReader(bytes.NewReader(bodyBytes), body),
				Closer: body,
			}
			// A truncated capture is not valid JSON and is recorded without payload.
			if err == nil && len(bodyBytes) > 0 {
				if json.Unmarshal(bodyBytes, &payload) == nil {
					payload = maskSensitiveFields(payload, config.SensitiveFields)
				}
			}
		}

		startTime := time.Now()

		c.Next()

		if c.GetBool(contextKeyAuditSkip) {
			return
		}

		path := c.Request.URL.Path
		entry := &AuditEntry{
			ID:        uuid.New().String(),
			Action:    actionFor(c.Request.Method, path),
			Method:    c.Request.Method,
			Path:      path,
			Status:    c.Writer.Status(),
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
			RequestID: c.GetHeader("X-Request-ID"),
			Payload:   payload,
			CreatedAt: startTime,
		}

		if p, ok := GetPrincipal(c); ok {
			id := p.IdentityID
			entry.IdentityID = &id
			entry.Email = p.Email
			entry.Roles = p.Roles
			entry.TenantID = p.TenantID
		}

		resourceType, resourceID := resourceFor(path)
		if rt := c.GetString(ContextKeyAuditResourceType); rt != "" {
			resourceType = rt
		}
		if rid := c.GetString(ContextKeyAuditResourceID); rid != "" {
			resourceID = rid
		}
		entry.ResourceType = resourceType
		if resourceID != "" {
			entry.ResourceID = &resourceID
		}
		if meta, exists := c.Get(ContextKeyAuditMetadata); exists {
			entry.Metadata, _ = meta.(map[string]interface{})
		}

		al.Log(entry)
	}
}

func actionFor(method, path string) AuditAction {
	p := strings.ToLower(path)

	switch {
	case strings.Contains(p, "/login"):
		return AuditActionLogin
	case strings.Contains(p, "/register"):
		return AuditActionRegister
	case strings.HasPrefix(p, "/onboarding"):
		return AuditActionOnboard
	case strings.Contains(p, "/staff"), strings.Contains(p, "owner"):
		return AuditActionProvision
	}

	switch method {
	case http.MethodPost:
		return AuditActionCreate
	case http.MethodPut, http.MethodPatch:
		return AuditActionUpdate
	case http.MethodDelete:
		return AuditActionDelete
	default:
		return AuditActionView
	}
}

// resourceFor derives the resource from the path, e.g.
// /admin/businesses/<uuid>/status -> ("business", "<uuid>").
func resourceFor(path string) (resourceType string, resourceID string) {
	parts := splitPath(path)
	for len(parts) > 0 && (parts[0] == "admin" || parts[0] == "owner" || parts[0] == "auth") {
		parts = parts[1:]
	}
	if len(parts) == 0 {
		return "unknown", ""
	}

	resourceType = parts[0]
	if strings.HasSuffix(resourceType, "sses") {
		resourceType = strings.TrimSuffix(resourceType, "es")
	} else {
		resourceType = strings.TrimSuffix(resourceType, "s")
	}
	if len(parts) > 1 {
		if _, err := uuid.Parse(parts[1]); err == nil {
			resourceID = parts[1]
		}
	}
	return resourceType, resourceID
}

func maskSensitiveFields(data map[string]interface{}, sensitiveFields []string) map[string]interface{} {
	if data == nil {
		return nil
	}

	result := make(map[string]interface{}, len(data))
	for k, v := range data {
		lowKey := strings.ToLower(k)
		masked := false
		for _, sf := range sensitiveFields {
			if strings.Contains(lowKey, sf) {
				result[k] = "[REDACTED]"
				masked = true
				break
			}
		}
		if masked {
			continue
		}
		switch nested := v.(type) {
		case map[string]interface{}:
			result[k] = maskSensitiveFields(nested, sensitiveFields)
		case []interface{}:
			items := make([]interface{}, len(nested))
			for i, item := range nested {
				if m, ok := item.(map[string]interface{}); ok {
					items[i] = maskSensitiveFields(m, sensitiveFields)
				} else {
					items[i] = item
				}
			}
			result[k] = items
		default:
			result[k] = v
		}
	}
	return result
}

// SetAuditResource sets the resource type and id recorded for this request
func SetAuditResource(c *gin.Context, resourceType, resourceID string) {
	c.Set(ContextKeyAuditResourceType, resourceType)
	c.Set(ContextKeyAuditResourceID, resourceID)
}

// SetAuditMetadata sets additional metadata for audit logging
func SetAuditMetadata(c *gin.Context, metadata map[string]interface{}) {
	c.Set(ContextKeyAuditMetadata, metadata)
}

// SkipAudit marks the current request to skip audit logging
func SkipAudit(c *gin.Context) {
	c.Set(contextKeyAuditSkip, true)
}

type readCloser struct {
	io.Reader
	io.Closer
}
