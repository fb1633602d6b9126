// Command logstress is a stress and soak harness for the logging core: it
// drives concurrent producers against one controller while a maintenance
// goroutine ticks, then reports allocator and queue statistics.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyp3rd/logcore"
	"github.com/hyp3rd/logcore/pkg/configloader"
	"github.com/hyp3rd/logcore/pkg/controller"
	"github.com/hyp3rd/logcore/pkg/sink"
)

type options struct {
	configFile     string
	producers      int
	messages       int
	payloadSize    int
	queueCapacity  int
	bufferCapacity int
	tick           time.Duration
}

func main() {
	opts := options{}

	rootCmd := &cobra.Command{
		Use:          "logstress",
		Short:        "Stress harness for the logcore allocator and dispatch queue",
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(opts)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "optional config file (YAML)")
	flags.IntVarP(&opts.producers, "producers", "p", 8, "number of concurrent producer goroutines")
	flags.IntVarP(&opts.messages, "messages", "n", 100000, "messages per producer")
	flags.IntVarP(&opts.payloadSize, "payload-size", "s", 128, "payload size in bytes")
	flags.IntVar(&opts.queueCapacity, "queue-capacity", 0, "dispatch queue capacity (0 = config default)")
	flags.IntVar(&opts.bufferCapacity, "buffer-capacity", 0, "initial ring buffer capacity (0 = config default)")
	flags.DurationVar(&opts.tick, "tick", time.Millisecond, "maintenance update interval")

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	ctrl := controller.New(cfg)
	counter := sink.NewCountingSink(logcore.TraceLevel)

	err = ctrl.AddSink(counter)
	if err != nil {
		return err
	}

	stopTicker := make(chan struct{})

	var tickerDone sync.WaitGroup

	tickerDone.Add(1)

	go func() {
		defer tickerDone.Done()

		ticker := time.NewTicker(opts.tick)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctrl.Update()
			case <-stopTicker:
				return
			}
		}
	}()

	start := time.Now()

	var producers sync.WaitGroup

	for p := 0; p < opts.producers; p++ {
		producers.Add(1)

		go func(seed int64) {
			defer producers.Done()

			rng := rand.New(rand.NewSource(seed))
			mem := ctrl.MemoryManager()

			for i := 0; i < opts.messages; i++ {
				handle, buf := mem.AllocatePayloadBuffer(opts.payloadSize)
				if !handle.IsValid() {
					// Exhaustion is a normal, recoverable condition: drop
					// and keep producing.
					continue
				}

				for j := range buf {
					buf[j] = byte(rng.Intn(256))
				}

				ctrl.DispatchMessage(handle, 0, logcore.InfoLevel)
			}
		}(int64(p) + 1)
	}

	producers.Wait()
	close(stopTicker)
	tickerDone.Wait()

	ctrl.Update()
	ctrl.FlushSync()

	elapsed := time.Since(start)

	memStats := ctrl.MemoryManager().Stats()
	queueStats := ctrl.Queue().Stats()

	fmt.Printf("elapsed:               %v\n", elapsed)
	fmt.Printf("dispatched:            %d\n", queueStats.Enqueued)
	fmt.Printf("queue drops:           %d\n", queueStats.Dropped)
	fmt.Printf("processed by sink:     %d (%d bytes)\n", counter.Processed(), counter.Bytes())
	fmt.Printf("allocations:           %d (%d via overflow, %d failed)\n",
		memStats.Allocations, memStats.OverflowAllocations, memStats.AllocationFailures)
	fmt.Printf("resizes:               %d (final capacity %d bytes)\n", memStats.Resizes, memStats.Capacity)
	fmt.Printf("throughput:            %.0f msg/s\n",
		float64(queueStats.Enqueued)/elapsed.Seconds())

	return ctrl.Shutdown()
}

func loadConfig(opts options) (logcore.Config, error) {
	cfg := logcore.DefaultConfig()

	if opts.configFile != "" {
		loaded, err := configloader.FromFile(opts.configFile)
		if err != nil {
			return cfg, err
		}

		cfg = loaded
	}

	if opts.queueCapacity > 0 {
		cfg.Queue.Capacity = opts.queueCapacity
	}

	if opts.bufferCapacity > 0 {
		cfg.Memory.InitialBufferCapacity = int32(opts.bufferCapacity)
	}

	cfg.Memory.OnAllocationFailure = func(requestedSize int) {
		fmt.Fprintf(os.Stderr, "logstress: allocation failed for %d bytes\n", requestedSize)
	}

	return cfg.Normalized(), nil
}
