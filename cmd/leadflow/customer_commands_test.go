package main

import (
	"strconv"
	"strings"
	"testing"
)

func TestMessageRecordingScoresCustomer(t *testing.T) {
	configPath := writeTestConfig(t)

	var created struct {
		ID int64 `json:"id"`
	}
	decodeJSON(t, mustRunCLI(t, configPath, "--json", "customer", "add",
		"--name", "Acme Freight", "--ref", "wx-acme", "--owner", "lin"), &created)
	id := strconv.FormatInt(created.ID, 10)

	out := mustRunCLI(t, configPath, "message", "record", "--customer", id,
		"--signal", "ask_price", "--signal", "leave_contact", "What is the rate to Rotterdam? Call me on 555-0100")
	requireContains(t, out, "Recorded entry", "0 -> 75 (+75)", "Level: C -> A", "Notification #")

	out = mustRunCLI(t, configPath, "customer", "show", id)
	requireContains(t, out, "Acme Freight", "75", "lin")

	out = mustRunCLI(t, configPath, "history", id)
	requireContains(t, out, "ask_price, leave_contact", "+75")

	out = mustRunCLI(t, configPath, "customer", "replay", id)
	requireContains(t, out, "Ledger and score agree")

	out = mustRunCLI(t, configPath, "signal", "apply", id, "just_asking", "mystery")
	requireContains(t, out, "75 -> 65 (-10)", "Ignored unknown signals: mystery")

	out = mustRunCLI(t, configPath, "customer", "replay", id)
	requireContains(t, out, "Drift: -10")

	out = mustRunCLI(t, configPath, "customer", "list", "--level", "A")
	requireContains(t, out, "Acme Freight")
}

func TestMessageRecordCreatesCustomerFromRef(t *testing.T) {
	configPath := writeTestConfig(t)

	out := mustRunCLI(t, configPath, "message", "record", "--ref", "wx-new", "--name", "Walk-in",
		"--role", "sales", "hello")
	requireContains(t, out, "Created customer #1")

	out = mustRunCLI(t, configPath, "message", "record", "--ref", "wx-new", "--direction", "outbound", "hi there")
	if strings.Contains(out, "Created customer") {
		t.Fatalf("expected existing customer to be reused, got:\n%s", out)
	}
}

func TestWorkerSetAvailability(t *testing.T) {
	configPath := writeTestConfig(t)

	out := mustRunCLI(t, configPath, "worker", "set", "sales", "offline")
	requireContains(t, out, "Chat is now offline")

	if _, _, err := runCLI(t, []string{"worker", "set", "chat", "asleep"}, configPath); err == nil {
		t.Fatal("expected unknown availability to be rejected")
	}
}
