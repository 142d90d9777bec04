// Command cli is the operator tool. It talks to the database directly, so it
// can bootstrap the first user before the HTTP API has anyone to authenticate.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/filescloud/internal/common"
	"github.com/dmitrijs2005/filescloud/internal/server/models"
	"github.com/dmitrijs2005/filescloud/internal/server/repositories/repomanager"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

func main() {
	dsn := flag.String("d", os.Getenv("DATABASE_DSN"), "database DSN")
	flag.Parse()

	if flag.NArg() < 1 || flag.Arg(0) != "create-user" {
		fmt.Fprintln(os.Stderr, "usage: cli -d <dsn> create-user")
		os.Exit(2)
	}
	if *dsn == "" {
		fmt.Fprintln(os.Stderr, "database DSN required (-d flag or DATABASE_DSN)")
		os.Exit(2)
	}

	if err := createUser(context.Background(), *dsn, bufio.NewReader(os.Stdin), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	fmt.Println("Success!")
}

func createUser(ctx context.Context, dsn string, reader *bufio.Reader, w io.Writer) error {
	username, err := getSimpleText(reader, "Enter user name", w)
	if err != nil {
		return err
	}
	if username == "" {
		return errors.New("user name must not be empty")
	}

	password, err := getPassword(w)
	if err != nil {
		return err
	}
	if len(password) == 0 {
		return errors.New("password must not be empty")
	}

	hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("db open error: %w", err)
	}
	defer db.Close()

	rm, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	user, err := rm.Users(db).Create(ctx, &models.User{UserName: username, PasswordHash: string(hash)})
	if err != nil {
		if errors.Is(err, common.ErrUsernameTaken) {
			return fmt.Errorf("user %q already exists", username)
		}
		return err
	}

	fmt.Fprintf(w, "created user %s (%s)\n", user.UserName, user.ID)
	return nil
}

// getSimpleText prints a prompt to w and reads a single line of input.
func getSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// getPassword reads a password from the terminal without echo.
func getPassword(w io.Writer) ([]byte, error) {
	if _, err := fmt.Fprint(w, "Enter password: "); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}
