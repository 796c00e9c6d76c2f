package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"

	"github.com/osdajiba/autotrade/internal/journal"
	"github.com/osdajiba/autotrade/internal/schema"
)

func main() {
	dir := flag.String("dir", "data/journal", "Journal directory")
	prefix := flag.String("prefix", "", "Journal file prefix (default: outcomes)")
	speed := flag.Float64("speed", 0, "Playback speed (1=real-time, 0=no pacing)")
	noChecksum := flag.Bool("no-checksum", false, "Disable checksum validation")
	maxPayload := flag.Int("max-payload", 0, "Max payload size in bytes (0=unlimited)")
	verbose := flag.Bool("verbose", false, "Print every entry")
	flag.Parse()

	pb, err := journal.NewPlayback(journal.PlaybackConfig{
		Dir:             *dir,
		FilePrefix:      *prefix,
		Speed:           *speed,
		DisableChecksum: *noChecksum,
		MaxPayloadSize:  *maxPayload,
	})
	if err != nil {
		log.Fatalf("playback init failed: %v", err)
	}

	var entries []journal.Entry
	err = pb.Run(context.Background(), func(e journal.Entry) error {
		entries = append(entries, e)
		if *verbose {
			fmt.Printf("%06d %s %-28s %s\n", e.Seq, e.At.Format("15:04:05.000000"), e.Title, e.Message)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("playback run failed: %v", err)
	}

	latest := journal.Fold(entries)
	ids := make([]string, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Printf("entries=%d orders=%d\n", len(entries), len(ids))
	for _, id := range ids {
		v := latest[id]
		fmt.Printf("%s %-8s %-4s %-13s %-9s filled=%d remaining=%d fee=%s\n",
			v.ID, v.Symbol, v.Action, v.Kind.Tag, v.Status, v.FilledQuantity, v.RemainingQuantity, v.TransactionFee)
	}

	tally := journal.Tally(entries)
	for r := schema.Result(1); r <= schema.MaxResult; r++ {
		if n := tally[r]; n > 0 {
			fmt.Printf("%-20s %d\n", r, n)
		}
	}
}
