package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/blackroad/power-manager/internal/repository"
)

func TestProcessMessage_Valid(t *testing.T) {
	svc, store, _ := newTestService(t)
	registerDevice(t, svc, "dev-1")
	meter := addMeter(t, svc, "dev-1", "battery", 50)

	body := fmt.Sprintf(`{
		"request_id": "req-1",
		"meter_id": %q,
		"voltage": 12.0,
		"current": 1.0,
		"charge_pct": 15.0,
		"recorded_at": "2026-08-26T10:00:00Z"
	}`, meter.ID)

	if err := svc.ProcessMessage(context.Background(), []byte(body)); err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}

	stored, _ := svc.GetMeter(context.Background(), meter.ID)
	if stored.ChargePct == nil || *stored.ChargePct != 15 {
		t.Errorf("Expected meter projection updated to 15, got %v", stored.ChargePct)
	}
	if events := store.deviceEvents("dev-1"); len(events) != 1 {
		t.Errorf("Expected one auto event, got %d", len(events))
	}
}

func TestProcessMessage_OmittedCharge(t *testing.T) {
	svc, _, _ := newTestService(t)
	registerDevice(t, svc, "dev-1")
	meter := addMeter(t, svc, "dev-1", "main", 0)

	body := fmt.Sprintf(`{"request_id": "req-2", "meter_id": %q, "voltage": 230, "current": 0.2}`, meter.ID)

	if err := svc.ProcessMessage(context.Background(), []byte(body)); err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}

	stored, _ := svc.GetMeter(context.Background(), meter.ID)
	if stored.ChargePct != nil {
		t.Errorf("Expected charge to stay unknown, got %v", stored.ChargePct)
	}
}

func TestProcessMessage_MalformedJSON(t *testing.T) {
	svc, _, _ := newTestService(t)

	if err := svc.ProcessMessage(context.Background(), []byte("{not json")); err == nil {
		t.Error("Expected error for malformed message")
	}
}

func TestProcessMessage_InvalidMeterID(t *testing.T) {
	svc, _, _ := newTestService(t)

	body := `{"request_id": "req-3", "meter_id": "not-a-uuid", "voltage": 12, "current": 1}`

	if err := svc.ProcessMessage(context.Background(), []byte(body)); err == nil {
		t.Error("Expected error for invalid meter id")
	}
}

func TestProcessMessage_UnknownMeter(t *testing.T) {
	svc, _, _ := newTestService(t)

	body := `{"request_id": "req-4", "meter_id": "4b1c6d3e-8a70-4e1b-9f1d-0c2a3b4c5d6e", "voltage": 12, "current": 1}`

	err := svc.ProcessMessage(context.Background(), []byte(body))
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound to propagate, got %v", err)
	}
}
