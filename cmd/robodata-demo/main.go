// Command robodata-demo wires the core together against an in-memory store
// and walks a collection → assignment → review flow end to end, printing
// the resulting operation log. Set ROBODATA_METRICS_ADDR to also expose
// Prometheus metrics while it runs.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"robodata.org/internal/audit"
	"robodata.org/internal/bus"
	"robodata.org/internal/clock"
	"robodata.org/internal/directory"
	"robodata.org/internal/kv"
	"robodata.org/internal/obs"
	"robodata.org/internal/probe"
	"robodata.org/internal/session"
	"robodata.org/internal/workflow"
)

var version = "0.1.0"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, "dev")

	if addr := os.Getenv("ROBODATA_METRICS_ADDR"); addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", obs.Handler())
			log.Printf("metrics on %s", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	ctx := context.Background()
	store := kv.NewMemory()
	b := bus.New()
	clk := clock.System{}

	dir := directory.NewInMemory()
	seedHash, err := directory.HashPassword("")
	if err != nil {
		log.Fatalf("hash seed password: %v", err)
	}
	err = dir.Add(ctx, directory.Account{
		Username:     "Lyu",
		PasswordHash: seedHash,
		DisplayName:  "Lyu",
		Roles:        []directory.Role{directory.RoleAdmin, directory.RoleReviewer, directory.RoleCollector},
	})
	if err != nil {
		log.Fatalf("seed directory: %v", err)
	}

	opLog := audit.NewLog(ctx, clk, store, b)
	defer opLog.Close()

	admin := directory.NewAdmin(dir, b)
	engine := workflow.NewEngine(ctx, clk, store, b)
	mgr := session.NewManager(session.Config{
		Clock:     clk,
		Store:     store,
		Directory: dir,
		OnRenewalPending: func() {
			log.Printf("session idle, renewal pending")
		},
		OnForcedLogout: func() {
			log.Printf("session expired, forced logout")
		},
	})
	defer mgr.Close()

	sess, err := mgr.Login(ctx, "Lyu", "")
	if err != nil {
		log.Fatalf("login: %v", err)
	}
	fmt.Printf("logged in as %s, role %s, page %s\n", sess.Username, sess.ActiveRole, sess.CurrentPage)

	if err := admin.CreateAccount(ctx, sess.Username, directory.NewAccount{
		Username:    "Fan",
		Password:    "fan-2026",
		DisplayName: "Fan Wei",
		Roles:       []directory.Role{directory.RoleReviewer},
	}); err != nil {
		log.Fatalf("create reviewer: %v", err)
	}

	device := "FRANKA-01"
	if base := os.Getenv("ROBODATA_PROBE_URL"); base != "" {
		scanner := probe.NewHTTPScanner(base)
		endpoints, err := scanner.Scan(ctx)
		if err != nil {
			log.Printf("device discovery: %v", err)
		} else if len(endpoints) > 0 {
			device = endpoints[0].Address
			fmt.Printf("discovered %d device endpoint(s), using %s\n", len(endpoints), device)
		}
	}

	now := time.Now().UTC()
	err = engine.AddCollectedClips(ctx, []workflow.Clip{
		{ID: "C1", Description: "arm to zero position", CollectedAt: now, DurationLabel: "00:42", FrameCount: 24, SourceSessionID: sess.SessionID, CollectorName: sess.Username, DeviceName: device},
		{ID: "C2", Description: "pick and place cube", CollectedAt: now, DurationLabel: "00:35", FrameCount: 21, SourceSessionID: sess.SessionID, CollectorName: sess.Username, DeviceName: device},
	})
	if err != nil {
		log.Fatalf("collect: %v", err)
	}

	if err := engine.AssignClip(ctx, "C1", "Fan", "Fan Wei", sess.Username); err != nil {
		log.Fatalf("assign: %v", err)
	}
	queue := engine.ClipsVisibleTo("Fan")
	fmt.Printf("reviewer queue: %d clip(s)\n", len(queue))

	err = engine.SubmitReview(ctx, "C1", workflow.ReviewInput{
		Validity:     workflow.ValidityValid,
		Completeness: workflow.CompletenessComplete,
		Comment:      "clean trajectory",
	}, "Fan")
	if err != nil {
		log.Fatalf("review: %v", err)
	}

	status, err := engine.EffectiveStatus("C1")
	if err != nil {
		log.Fatalf("status: %v", err)
	}
	fmt.Printf("C1 effective status: %s\n", status)

	if err := mgr.Logout(ctx); err != nil {
		log.Fatalf("logout: %v", err)
	}

	fmt.Println("operation log (newest first):")
	for _, e := range opLog.AllEntries() {
		fmt.Printf("  %s  %-14s %-10s %s | %s\n",
			e.Timestamp.Format(time.RFC3339), e.Category, e.ActorUsername, e.Description, e.Detail)
	}
}
