// seed inserts a verified test user and a few tasks with tests into the local dev database.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/ErlanBelekov/devlife/internal/domain"
	"github.com/ErlanBelekov/devlife/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/devlife/internal/security"
)

const (
	seedEmail    = "seed@test.local"
	seedPassword = "seed-password"
)

func cases(pairs ...[2]string) []domain.TestCase {
	out := make([]domain.TestCase, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, domain.TestCase{Input: domain.TestInput{p[0]}, Expected: p[1]})
	}
	return out
}

var tasks = []domain.Task{
	{
		ID:        "two-sum",
		Title:     "Two sum",
		Objective: "Read two integers, one per line, and print their sum.",
		Tags:      []string{"math", "warmup"},
		Content:   "Input arrives on stdin. Print a single integer.",
		Tests: []domain.TestCase{
			{Input: domain.TestInput{"1", "2"}, Expected: "3"},
			{Input: domain.TestInput{"-5", "5"}, Expected: "0"},
			{Input: domain.TestInput{"1000000", "2345678"}, Expected: "3345678"},
		},
	},
	{
		ID:        "reverse-string",
		Title:     "Reverse a string",
		Objective: "Print the input line reversed.",
		Tags:      []string{"strings"},
		Content:   "A single line of ASCII text arrives on stdin.",
		Tests:     cases([2]string{"hello", "olleh"}, [2]string{"devlife", "efilved"}, [2]string{"a", "a"}),
	},
	{
		ID:        "fizzbuzz",
		Title:     "FizzBuzz",
		Objective: "Print Fizz, Buzz, FizzBuzz or the number itself.",
		Tags:      []string{"warmup"},
		Content:   "A single positive integer arrives on stdin.",
		Tests:     cases([2]string{"3", "Fizz"}, [2]string{"10", "Buzz"}, [2]string{"30", "FizzBuzz"}, [2]string{"7", "7"}),
	},
}

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set, run: direnv allow")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	users := postgres.NewUserRepository(pool)
	taskRepo := postgres.NewTaskRepository(pool)

	user, err := users.FindByEmail(ctx, seedEmail)
	if errors.Is(err, domain.ErrUserNotFound) {
		hash, hashErr := security.NewArgon2Hasher(security.DefaultArgon2Params()).Hash(seedPassword)
		if hashErr != nil {
			log.Fatalf("hash password: %v", hashErr)
		}
		user, err = users.CreateWithCredential(ctx, seedEmail, hash)
	}
	if err != nil {
		log.Fatalf("seed user: %v", err)
	}
	if !user.Verified {
		if err := users.MarkVerified(ctx, user.ID); err != nil {
			log.Fatalf("verify user: %v", err)
		}
	}

	var inserted, skipped int
	for i := range tasks {
		t := tasks[i]
		t.Author = seedEmail
		_, err := taskRepo.Create(ctx, &t)
		switch {
		case errors.Is(err, domain.ErrTaskConflict):
			skipped++
		case err != nil:
			log.Fatalf("insert task %s: %v", t.ID, err)
		default:
			inserted++
		}
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  User:          %s (password %q)\n", seedEmail, seedPassword)
	fmt.Printf("  User ID:       %s\n", user.ID)
	fmt.Printf("  Tasks created: %d  (skipped %d already existing)\n", inserted, skipped)
	fmt.Println()
	fmt.Println("Try it with the CLI:")
	fmt.Println()
	fmt.Printf("  devlife auth -e %s\n", seedEmail)
	fmt.Println("  devlife list")
	fmt.Println("  devlife submit two-sum ./solution.py")
}
