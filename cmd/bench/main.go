package main

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		addr     string
		n        int
		conc     int
		sessions int
		valSize  int
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Drive PUT/GET load against a sessionstore server",
		RunE: func(_ *cobra.Command, _ []string) error {
			client := &http.Client{Timeout: 5 * time.Second}
			var g errgroup.Group
			g.SetLimit(conc)
			start := time.Now()

			for i := 0; i < n; i++ {
				g.Go(func() error {
					url := fmt.Sprintf("%s/sessions/bench-%d/item-%d", addr, i%sessions, i)
					payload := fmt.Appendf(nil, `{"pad":%q}`, bytes.Repeat([]byte{'a' + byte(rand.Intn(26))}, valSize))

					req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(payload))
					if err != nil {
						return err
					}
					req.Header.Set("Content-Type", "application/json")
					if resp, err := client.Do(req); err == nil {
						io.Copy(io.Discard, resp.Body)
						resp.Body.Close()
					}
					if resp, err := client.Get(url); err == nil {
						io.Copy(io.Discard, resp.Body)
						resp.Body.Close()
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			dur := time.Since(start)
			fmt.Printf("Completed %d ops in %s (%.2f ops/s)\n", n*2, dur, float64(n*2)/dur.Seconds())
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", "http://localhost:8080", "server address")
	f.IntVarP(&n, "requests", "n", 5000, "requests")
	f.IntVarP(&conc, "concurrency", "c", 32, "concurrency")
	f.IntVar(&sessions, "sessions", 64, "distinct sessions to spread writes over")
	f.IntVar(&valSize, "val", 128, "value size bytes")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
