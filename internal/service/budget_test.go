package service_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/blackroad/power-manager/internal/power"
	"github.com/blackroad/power-manager/internal/repository"
)

func TestEstimateRuntime_SnapshotCalculation(t *testing.T) {
	svc, _, _ := newTestService(t)
	registerDevice(t, svc, "dev-1")
	meter := addMeter(t, svc, "dev-1", "battery", 50)

	// 50 Wh at 80% = 40 Wh remaining; 12 V * 1.5 A = 18 W draw.
	if _, err := svc.LogPower(context.Background(), meter.ID, 12, 1.5, pct(80)); err != nil {
		t.Fatalf("LogPower failed: %v", err)
	}

	hours, ok, err := svc.EstimateRuntime(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("EstimateRuntime failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected a runtime estimate")
	}
	if math.Abs(hours-2.22) > 0.001 {
		t.Errorf("Expected roughly 2.22 hours, got %f", hours)
	}
}

func TestEstimateRuntime_AbsentWhenNotDischarging(t *testing.T) {
	svc, _, _ := newTestService(t)
	registerDevice(t, svc, "dev-1")
	meter := addMeter(t, svc, "dev-1", "battery", 50)

	if _, err := svc.LogPower(context.Background(), meter.ID, 12, 0, pct(80)); err != nil {
		t.Fatalf("LogPower failed: %v", err)
	}

	_, ok, err := svc.EstimateRuntime(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("EstimateRuntime failed: %v", err)
	}
	if ok {
		t.Error("Expected absent estimate for zero current draw")
	}
}

func TestEstimateRuntime_AbsentWithoutBattery(t *testing.T) {
	svc, _, _ := newTestService(t)
	registerDevice(t, svc, "dev-1")
	addMeter(t, svc, "dev-1", "main", 0)

	_, ok, err := svc.EstimateRuntime(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("EstimateRuntime failed: %v", err)
	}
	if ok {
		t.Error("Expected absent estimate without a battery meter")
	}
}

func TestEstimateRuntime_AbsentWithoutChargeReading(t *testing.T) {
	svc, _, _ := newTestService(t)
	registerDevice(t, svc, "dev-1")
	meter := addMeter(t, svc, "dev-1", "battery", 50)

	if _, err := svc.LogPower(context.Background(), meter.ID, 12, 1.5, nil); err != nil {
		t.Fatalf("LogPower failed: %v", err)
	}

	_, ok, err := svc.EstimateRuntime(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("EstimateRuntime failed: %v", err)
	}
	if ok {
		t.Error("Expected absent estimate without a charge reading")
	}
}

func TestEstimateRuntime_UnknownDevice(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, _, err := svc.EstimateRuntime(context.Background(), "ghost")

	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestPowerBudgetCheck_UnknownDeviceFailsWhole(t *testing.T) {
	svc, _, _ := newTestService(t)
	registerDevice(t, svc, "dev-1")

	summary, err := svc.PowerBudgetCheck(context.Background(), []string{"dev-1", "ghost"})

	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if summary != nil {
		t.Error("Expected no partial aggregation on failure")
	}
}

func TestPowerBudgetCheck_WorstStatePrecedence(t *testing.T) {
	svc, _, _ := newTestService(t)
	registerDevice(t, svc, "dev-1")
	normal := addMeter(t, svc, "dev-1", "battery", 50)
	critical := addMeter(t, svc, "dev-1", "battery", 50)
	addMeter(t, svc, "dev-1", "solar", 0) // always charging

	if _, err := svc.LogPower(context.Background(), normal.ID, 12, 1, pct(60)); err != nil {
		t.Fatalf("LogPower failed: %v", err)
	}
	if _, err := svc.LogPower(context.Background(), critical.ID, 12, 1, pct(2)); err != nil {
		t.Fatalf("LogPower failed: %v", err)
	}

	summary, err := svc.PowerBudgetCheck(context.Background(), []string{"dev-1"})
	if err != nil {
		t.Fatalf("PowerBudgetCheck failed: %v", err)
	}

	budget := summary.Devices["dev-1"]
	if budget.State != power.StateCritical {
		t.Errorf("Expected device state critical, got %s", budget.State)
	}
}

func TestPowerBudgetCheck_Aggregates(t *testing.T) {
	svc, _, _ := newTestService(t)
	registerDevice(t, svc, "dev-1")
	registerDevice(t, svc, "dev-2")

	battery := addMeter(t, svc, "dev-1", "battery", 100)
	addMeter(t, svc, "dev-1", "solar", 0)
	main := addMeter(t, svc, "dev-2", "main", 0)

	if _, err := svc.LogPower(context.Background(), battery.ID, 12, 2, pct(50)); err != nil {
		t.Fatalf("LogPower failed: %v", err)
	}
	if _, err := svc.LogPower(context.Background(), main.ID, 230, 0.1, nil); err != nil {
		t.Fatalf("LogPower failed: %v", err)
	}

	summary, err := svc.PowerBudgetCheck(context.Background(), []string{"dev-1", "dev-2"})
	if err != nil {
		t.Fatalf("PowerBudgetCheck failed: %v", err)
	}

	dev1 := summary.Devices["dev-1"]
	if dev1.TotalWattage != 24.0 {
		t.Errorf("Expected dev-1 total 24.0 W, got %f", dev1.TotalWattage)
	}
	if dev1.BatteryCount != 1 || dev1.SolarCount != 1 {
		t.Errorf("Expected 1 battery and 1 solar meter, got %d and %d", dev1.BatteryCount, dev1.SolarCount)
	}
	if dev1.AvgChargePct == nil || *dev1.AvgChargePct != 50 {
		t.Errorf("Expected avg charge 50, got %v", dev1.AvgChargePct)
	}
	if dev1.EstimatedRuntimeHours == nil || math.Abs(*dev1.EstimatedRuntimeHours-2.08) > 0.001 {
		t.Errorf("Expected runtime estimate 2.08 h, got %v", dev1.EstimatedRuntimeHours)
	}

	dev2 := summary.Devices["dev-2"]
	if dev2.TotalWattage != 23.0 {
		t.Errorf("Expected dev-2 total 23.0 W, got %f", dev2.TotalWattage)
	}
	if dev2.AvgChargePct != nil {
		t.Errorf("Expected no avg charge without battery meters, got %v", dev2.AvgChargePct)
	}

	if summary.TotalWattage != 47.0 {
		t.Errorf("Expected fleet total 47.0 W, got %f", summary.TotalWattage)
	}
}

func TestPowerBudgetCheck_DeviceWithoutMeters(t *testing.T) {
	svc, _, _ := newTestService(t)
	registerDevice(t, svc, "dev-1")

	summary, err := svc.PowerBudgetCheck(context.Background(), []string{"dev-1"})
	if err != nil {
		t.Fatalf("PowerBudgetCheck failed: %v", err)
	}

	budget := summary.Devices["dev-1"]
	if budget.State != power.StateUnknown {
		t.Errorf("Expected unknown state for a meterless device, got %s", budget.State)
	}
	if budget.TotalWattage != 0 {
		t.Errorf("Expected zero wattage, got %f", budget.TotalWattage)
	}
}
