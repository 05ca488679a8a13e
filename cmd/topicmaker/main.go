package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/niksmo/darkstore/config"
	"github.com/niksmo/darkstore/internal/adapter"
	"github.com/niksmo/darkstore/pkg/sigctx"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	partitions        = 3
	replicationFactor = 3
	deletePolicy      = "delete"
	compactPolicy     = "compact"
)

func main() {
	sigCtx, closeApp := sigctx.NotifyContext()
	defer closeApp()

	cfg := config.Load()
	if !cfg.EventsEnabled() {
		fmt.Println("broker.seed_brokers is empty, nothing to do")
		return
	}

	cl := createClient(cfg)
	defer cl.Close()

	printStart(cfg)
	defer printComplete(time.Now())

	// cart events: append-only history
	err := makeTopics(sigCtx, cl, deletePolicy, cfg.Broker.Topics.CartEvents)
	if err != nil {
		printFail(err)
		return
	}

	// catalog: latest record per product id
	err = makeTopics(sigCtx, cl, compactPolicy, cfg.Broker.Topics.Products)
	if err != nil {
		printFail(err)
		return
	}
}

func createClient(cfg config.Config) *kadm.Client {
	b := cfg.Broker
	opts := []kgo.Opt{kgo.SeedBrokers(b.SeedBrokers...)}
	if b.TLS.Enabled() {
		tlsCfg, err := adapter.LoadClientTLS(b.TLS.CAFile, b.TLS.CertFile, b.TLS.KeyFile)
		if err != nil {
			printFail(err)
			os.Exit(2)
		}
		opts = append(opts, kgo.DialTLSConfig(tlsCfg))
	}

	cl, err := kadm.NewOptClient(opts...)
	if err != nil {
		panic(err) // develop mistake
	}
	return cl
}

func makeTopics(
	ctx context.Context, cl *kadm.Client, cleanupPolicy string, topics ...string,
) error {
	minISR := "2"

	config := map[string]*string{
		"cleanup.policy":      &cleanupPolicy,
		"min.insync.replicas": &minISR,
	}

	responses, err := cl.CreateTopics(
		ctx,
		partitions,
		replicationFactor,
		config,
		topics...,
	)
	if err != nil {
		return err
	}

	var errs []error
	for _, res := range responses.Sorted() {
		if res.Err != nil {
			if errors.Is(res.Err, kerr.TopicAlreadyExists) {
				fmt.Printf("topic: %q already exists\n", res.Topic)
			} else {
				errs = append(errs, fmt.Errorf("topic %q: %w", res.Topic, res.Err))
			}
			continue
		}
		fmt.Printf("topic: %q successfully created\n", res.Topic)
	}

	return errors.Join(errs...)
}

func printStart(cfg config.Config) {
	fmt.Printf(`initializing topics...
	- %q (%s)
	- %q (%s)

`,
		cfg.Broker.Topics.CartEvents, deletePolicy,
		cfg.Broker.Topics.Products, compactPolicy,
	)
}

func printComplete(start time.Time) {
	fmt.Printf("\ncomplete in %s\n", time.Since(start))
}

func printFail(err error) {
	fmt.Printf("failed to create topics: \n%s\n", err)
}
