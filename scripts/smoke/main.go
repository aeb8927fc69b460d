// Command smoke drives a live class schedule server through a full
// create/read/update/delete cycle and exits non-zero if any step fails.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/noah-isme/class-schedule/internal/client"
	"github.com/noah-isme/class-schedule/internal/models"
)

type step struct {
	Name     string
	Critical bool
	Run      func(ctx context.Context, s *scenario) error
}

type result struct {
	Step     step
	Err      error
	Duration time.Duration
}

// scenario carries state between steps.
type scenario struct {
	api   *client.Client
	input models.ClassInput
	id    int64
}

func main() {
	var (
		server  string
		timeout time.Duration
		subject string
	)
	flag.StringVar(&server, "server", "http://localhost:8080", "class schedule server URL")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.StringVar(&subject, "subject", fmt.Sprintf("SMOKE-%d", time.Now().Unix()), "subject used for the smoke-test class")
	flag.Parse()

	api, err := client.New(server, client.WithTimeout(timeout))
	if err != nil {
		log.Fatalf("invalid server: %v", err)
	}

	s := &scenario{
		api:   api,
		input: models.ClassInput{Subject: subject, Time: "10:00", Day: "Mon", Room: "A1", Instructor: "Smoke Test"},
	}
	results := run(context.Background(), s, steps())
	printReport(os.Stdout, results)

	var breaking, optional int
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		if r.Step.Critical {
			breaking++
		} else {
			optional++
		}
	}
	fmt.Printf("Breaking failures: %d, Optional failures: %d\n", breaking, optional)
	if breaking > 0 {
		os.Exit(1)
	}
}

func steps() []step {
	return []step{
		{Name: "create class", Critical: true, Run: func(ctx context.Context, s *scenario) error {
			c, err := s.api.CreateClass(ctx, s.input)
			if err != nil {
				return err
			}
			if c.ID == 0 {
				return errors.New("server returned no id")
			}
			s.id = c.ID
			return nil
		}},
		{Name: "list contains class once", Critical: true, Run: func(ctx context.Context, s *scenario) error {
			return expectListed(ctx, s, 1)
		}},
		{Name: "filter by day", Critical: false, Run: func(ctx context.Context, s *scenario) error {
			list, err := s.api.ListClasses(ctx, s.input.Day)
			if err != nil {
				return err
			}
			for _, c := range list {
				if c.Day != s.input.Day {
					return fmt.Errorf("class %d has day %q", c.ID, c.Day)
				}
			}
			return nil
		}},
		{Name: "update room", Critical: true, Run: func(ctx context.Context, s *scenario) error {
			s.input.Room = "B2"
			c, err := s.api.UpdateClass(ctx, s.id, s.input)
			if err != nil {
				return err
			}
			if c.ID != s.id {
				return fmt.Errorf("id changed from %d to %d", s.id, c.ID)
			}
			return nil
		}},
		{Name: "get reflects update", Critical: true, Run: func(ctx context.Context, s *scenario) error {
			c, err := s.api.GetClass(ctx, s.id)
			if err != nil {
				return err
			}
			if c.Input() != s.input {
				return fmt.Errorf("got %+v, want %+v", c.Input(), s.input)
			}
			return nil
		}},
		{Name: "delete class", Critical: true, Run: func(ctx context.Context, s *scenario) error {
			_, err := s.api.DeleteClass(ctx, s.id)
			return err
		}},
		{Name: "second delete is not found", Critical: true, Run: func(ctx context.Context, s *scenario) error {
			_, err := s.api.DeleteClass(ctx, s.id)
			if !client.IsNotFound(err) {
				return fmt.Errorf("want not found, got %v", err)
			}
			return nil
		}},
		{Name: "list no longer contains class", Critical: true, Run: func(ctx context.Context, s *scenario) error {
			return expectListed(ctx, s, 0)
		}},
	}
}

func expectListed(ctx context.Context, s *scenario, want int) error {
	list, err := s.api.ListClasses(ctx, "")
	if err != nil {
		return err
	}
	got := 0
	for _, c := range list {
		if c.ID == s.id {
			got++
		}
	}
	if got != want {
		return fmt.Errorf("class %d listed %d times, want %d", s.id, got, want)
	}
	return nil
}

// run executes steps in order. Once a critical step fails the remaining
// steps are skipped, since they depend on its outcome.
func run(ctx context.Context, s *scenario, steps []step) []result {
	results := make([]result, 0, len(steps))
	for _, st := range steps {
		start := time.Now()
		err := st.Run(ctx, s)
		results = append(results, result{Step: st, Err: err, Duration: time.Since(start)})
		if err != nil && st.Critical {
			break
		}
	}
	return results
}

func printReport(w io.Writer, results []result) {
	fmt.Fprintln(w, "Smoke Test Report")
	fmt.Fprintln(w, "=================")
	for _, r := range results {
		status := "OK"
		if r.Err != nil {
			status = "FAIL"
		}
		fmt.Fprintf(w, "[%s] %s (%s)\n", status, r.Step.Name, r.Duration.Round(time.Millisecond))
		if r.Err != nil {
			fmt.Fprintf(w, "  Error: %v | Critical: %t\n", r.Err, r.Step.Critical)
		}
	}
}
