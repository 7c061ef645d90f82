package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// otlpRecord is one entry of an OTLP/HTTP JSON logs export
type otlpRecord struct {
	TimeUnixNano         string          `json:"timeUnixNano"`
	ObservedTimeUnixNano string          `json:"observedTimeUnixNano"`
	SeverityNumber       int32           `json:"severityNumber"`
	SeverityText         string          `json:"severityText"`
	Body                 otlpValue       `json:"body"`
	Attributes           []otlpAttribute `json:"attributes,omitempty"`
	TraceID              string          `json:"traceId,omitempty"`
	SpanID               string          `json:"spanId,omitempty"`
}

type otlpAttribute struct {
	Key   string    `json:"key"`
	Value otlpValue `json:"value"`
}

type otlpValue struct {
	StringValue *string  `json:"stringValue,omitempty"`
	IntValue    *string  `json:"intValue,omitempty"`
	DoubleValue *float64 `json:"doubleValue,omitempty"`
	BoolValue   *bool    `json:"boolValue,omitempty"`
}

type otlpExport struct {
	ResourceLogs []otlpResourceLogs `json:"resourceLogs"`
}

type otlpResourceLogs struct {
	Resource struct {
		Attributes []otlpAttribute `json:"attributes"`
	} `json:"resource"`
	ScopeLogs []otlpScopeLogs `json:"scopeLogs"`
}

type otlpScopeLogs struct {
	Scope struct {
		Name string `json:"name"`
	} `json:"scope"`
	LogRecords []otlpRecord `json:"logRecords"`
}

// otlpExporter batches records and posts them to the collector
type otlpExporter struct {
	url         string
	serviceName string
	client      *http.Client
	batchSize   int

	mu     sync.Mutex
	buffer []otlpRecord

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newOTLPExporter(cfg *Config) *otlpExporter {
	batchSize := cfg.OTLPBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	interval := cfg.OTLPFlushInterval
	if interval <= 0 {
		interval = time.Second
	}

	e := &otlpExporter{
		url:         fmt.Sprintf("http://%s/v1/logs", cfg.OTLPEndpoint),
		serviceName: cfg.ServiceName,
		client:      &http.Client{Timeout: 5 * time.Second},
		batchSize:   batchSize,
		buffer:      make([]otlpRecord, 0, batchSize),
		stop:        make(chan struct{}),
	}

	e.wg.Add(1)
	go e.loop(interval)
	return e
}

func (e *otlpExporter) add(rec otlpRecord) {
	e.mu.Lock()
	e.buffer = append(e.buffer, rec)
	full := len(e.buffer) >= e.batchSize
	e.mu.Unlock()

	if full {
		go e.flush()
	}
}

func (e *otlpExporter) loop(interval time.Duration) {
	defer e.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.flush()
		case <-e.stop:
			return
		}
	}
}

// close stops the background loop and sends what is left
func (e *otlpExporter) close() {
	e.closeOnce.Do(func() {
		close(e.stop)
		e.wg.Wait()
		e.flush()
	})
}

func (e *otlpExporter) flush() {
	e.mu.Lock()
	if len(e.buffer) == 0 {
		e.mu.Unlock()
		return
	}
	records := e.buffer
	e.buffer = make([]otlpRecord, 0, e.batchSize)
	e.mu.Unlock()

	var rl otlpResourceLogs
	rl.Resource.Attributes = []otlpAttribute{
		stringAttr("service.name", e.serviceName),
		stringAttr("service.namespace", "multicore-crm"),
	}
	var scope otlpScopeLogs
	scope.Scope.Name = "go.uber.org/zap"
	scope.LogRecords = records
	rl.ScopeLogs = []otlpScopeLogs{scope}

	data, err := json.Marshal(otlpExport{ResourceLogs: []otlpResourceLogs{rl}})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: encode otlp logs: %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(data))
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: build otlp request: %v\n", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		// The collector being down never blocks the service.
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		fmt.Fprintf(os.Stderr, "logger: otlp export rejected with status %d\n", resp.StatusCode)
	}
}

// otlpCore is a zapcore.Core that hands entries to an otlpExporter
type otlpCore struct {
	zapcore.LevelEnabler
	exporter *otlpExporter
	fields   []zapcore.Field
}

func (c *otlpCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &otlpCore{LevelEnabler: c.LevelEnabler, exporter: c.exporter, fields: merged}
}

func (c *otlpCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *otlpCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	rec := otlpRecord{
		TimeUnixNano:         fmt.Sprint(ent.Time.UnixNano()),
		ObservedTimeUnixNano: fmt.Sprint(time.Now().UnixNano()),
		SeverityNumber:       severity(ent.Level),
		SeverityText:         ent.Level.CapitalString(),
		Body:                 stringValue(ent.Message),
	}
	if ent.Caller.Defined {
		rec.Attributes = append(rec.Attributes, stringAttr("code.caller", ent.Caller.TrimmedPath()))
	}

	all := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	all = append(all, c.fields...)
	all = append(all, fields...)
	for _, f := range all {
		switch f.Key {
		case "trace_id":
			rec.TraceID = f.String
			continue
		case "span_id":
			rec.SpanID = f.String
			continue
		}
		if attr, ok := fieldAttr(f); ok {
			rec.Attributes = append(rec.Attributes, attr)
		}
	}

	c.exporter.add(rec)
	return nil
}

func (c *otlpCore) Sync() error {
	c.exporter.flush()
	return nil
}

// severity maps zap levels onto the OTLP SeverityNumber ranges
func severity(level zapcore.Level) int32 {
	switch level {
	case zapcore.DebugLevel:
		return 5
	case zapcore.InfoLevel:
		return 9
	case zapcore.WarnLevel:
		return 13
	case zapcore.ErrorLevel:
		return 17
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return 21
	default:
		return 0
	}
}

func stringValue(s string) otlpValue {
	return otlpValue{StringValue: &s}
}

func stringAttr(key, value string) otlpAttribute {
	return otlpAttribute{Key: key, Value: stringValue(value)}
}

func fieldAttr(f zapcore.Field) (otlpAttribute, bool) {
	switch f.Type {
	case zapcore.StringType:
		return stringAttr(f.Key, f.String), true
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type:
		v := fmt.Sprint(f.Integer)
		return otlpAttribute{Key: f.Key, Value: otlpValue{IntValue: &v}}, true
	case zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		v := fmt.Sprint(uint64(f.Integer))
		return otlpAttribute{Key: f.Key, Value: otlpValue{IntValue: &v}}, true
	case zapcore.Float64Type:
		v := math.Float64frombits(uint64(f.Integer))
		return otlpAttribute{Key: f.Key, Value: otlpValue{DoubleValue: &v}}, true
	case zapcore.BoolType:
		v := f.Integer == 1
		return otlpAttribute{Key: f.Key, Value: otlpValue{BoolValue: &v}}, true
	case zapcore.DurationType:
		return stringAttr(f.Key, time.Duration(f.Integer).String()), true
	case zapcore.ErrorType:
		if err, ok := f.Interface.(error); ok && err != nil {
			return stringAttr(f.Key, err.Error()), true
		}
	case zapcore.StringerType:
		if s, ok := f.Interface.(fmt.Stringer); ok && s != nil {
			return stringAttr(f.Key, s.String()), true
		}
	case zapcore.SkipType:
	default:
		if f.Interface != nil {
			if data, err := json.Marshal(f.Interface); err == nil {
				return stringAttr(f.Key, string(data)), true
			}
		}
	}
	return otlpAttribute{}, false
}
