package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Naman6019/News-Agent/internal/config"
	"github.com/Naman6019/News-Agent/internal/digest"
	"github.com/Naman6019/News-Agent/internal/handlers"
	"github.com/Naman6019/News-Agent/internal/logging"
	"github.com/Naman6019/News-Agent/internal/schedule"
)

func main() {
	slotFlag := flag.String("slot", "", "delivery slot (morning or evening); defaults to the slot matching the current time")
	preview := flag.Bool("preview", false, "build the digest and print it without delivering")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.LogLevel)

	// Create server instance (contains all the clients)
	server, err := handlers.NewServer(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	slot := resolveSlot(*slotFlag, cfg)
	ctx := context.Background()

	if *preview {
		report := server.Digest().Preview(ctx, slot)
		if report.Message == "" {
			log.Fatalf("Preview failed: %s", report.Error)
		}
		fmt.Println(report.Message)
		return
	}

	// Run one digest cycle and report the outcome
	report := server.Digest().Run(ctx, slot)
	fmt.Printf("Digest cycle finished: %s (%d articles, %d summarized, delivery %s)\n",
		report.Outcome, report.Articles, report.Summarized, report.Delivery)
	if report.Outcome == digest.OutcomeFailed {
		os.Exit(1)
	}
}

// resolveSlot picks the slot from the flag, or from the current time in the
// configured delivery timezone when the flag is empty.
func resolveSlot(value string, cfg *config.Config) schedule.Slot {
	if value != "" {
		slot, err := schedule.ParseSlot(value)
		if err != nil {
			log.Fatalf("Invalid slot: %v", err)
		}
		return slot
	}

	location, err := cfg.Location()
	if err != nil {
		location = time.UTC
	}
	if time.Now().In(location).Hour() < cfg.EveningDeliveryHour {
		return schedule.SlotMorning
	}
	return schedule.SlotEvening
}
