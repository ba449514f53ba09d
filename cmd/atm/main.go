package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/mjfrontdev/atm-simulation/internal/config"
	"github.com/mjfrontdev/atm-simulation/internal/domain"
	"github.com/mjfrontdev/atm-simulation/internal/errors"
	"github.com/mjfrontdev/atm-simulation/internal/ledger"
	"github.com/mjfrontdev/atm-simulation/internal/session"
	"github.com/mjfrontdev/atm-simulation/internal/store"
)

// atmStore is what the terminal needs from a backend: accounts plus the
// session pointer. Both store implementations satisfy it.
type atmStore interface {
	domain.AccountStore
	domain.SessionStore
}

func main() {
	// Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	var backend atmStore
	switch cfg.StoreBackend {
	case config.BackendMemory:
		backend = store.NewMemoryStore()
	case config.BackendSQLite:
		sqliteStore, err := store.OpenSQLite(cfg.DBPath, logger)
		if err != nil {
			logger.Error("failed to open store", "error", err)
			os.Exit(1)
		}
		defer sqliteStore.Close()
		backend = sqliteStore
	default:
		logger.Error("unknown store backend", "backend", cfg.StoreBackend)
		os.Exit(1)
	}

	engine := ledger.NewService(backend, logger)
	sessions := session.NewManager(engine, backend, backend, logger)

	if seeded, err := engine.EnsureDemoAccount(); err != nil {
		logger.Error("failed to seed demo account", "error", err)
		os.Exit(1)
	} else if seeded {
		fmt.Printf("Demo card available: %s (PIN %s)\n", ledger.DemoCardNumber, ledger.DemoPIN)
	}

	app := &app{
		engine:   engine,
		sessions: sessions,
		in:       bufio.NewScanner(os.Stdin),
	}
	app.run()
}

type app struct {
	engine   *ledger.Service
	sessions *session.Manager
	in       *bufio.Scanner
}

func (a *app) run() {
	// Resume a session left over from a previous run.
	if account, err := a.sessions.Current(); err == nil {
		fmt.Printf("Welcome back, %s\n", account.OwnerName)
		a.mainMenu()
	}

	for {
		fmt.Println()
		fmt.Println("=== ATM ===")
		fmt.Println("1) Log in")
		fmt.Println("2) Open a new account")
		fmt.Println("3) Exit")

		switch a.prompt("Choose") {
		case "1":
			a.login()
		case "2":
			a.openAccount()
		case "3":
			return
		}
	}
}

func (a *app) login() {
	cardNumber := a.prompt("Card number")
	pin := a.prompt("PIN")

	account, err := a.sessions.Login(cardNumber, pin)
	if err != nil {
		a.printError(err)
		return
	}

	fmt.Printf("Welcome, %s\n", account.OwnerName)
	a.mainMenu()
}

func (a *app) openAccount() {
	req := ledger.OpenAccountRequest{
		OwnerName: a.prompt("Full name"),
		Email:     a.prompt("Email"),
		Phone:     a.prompt("Phone"),
		PIN:       a.prompt("Choose a 4-digit PIN"),
	}
	if a.prompt("Confirm PIN") != req.PIN {
		fmt.Println("PINs do not match")
		return
	}

	account, err := a.engine.OpenAccount(req)
	if err != nil {
		a.printError(err)
		return
	}

	fmt.Printf("Account opened. Your card number is %s\n", account.CardNumber)
	fmt.Printf("Opening balance: %s\n", formatAmount(account.Balances.Current))
}

func (a *app) mainMenu() {
	for {
		fmt.Println()
		fmt.Println("1) Withdraw")
		fmt.Println("2) Deposit")
		fmt.Println("3) Balance")
		fmt.Println("4) Transfer")
		fmt.Println("5) Pay bill")
		fmt.Println("6) Statement")
		fmt.Println("7) Log out")

		account, err := a.sessions.Current()
		if err != nil {
			a.printError(err)
			return
		}

		switch a.prompt("Choose") {
		case "1":
			amount, ok := a.promptAmount("Amount to withdraw")
			if !ok {
				continue
			}
			if updated, entry, err := a.engine.Withdraw(account, amount); err != nil {
				a.printError(err)
			} else {
				fmt.Printf("Dispensed %s. New balance: %s\n",
					formatAmount(entry.Amount), formatAmount(updated.Balances.Current))
			}
		case "2":
			amount, ok := a.promptAmount("Amount to deposit")
			if !ok {
				continue
			}
			if updated, entry, err := a.engine.Deposit(account, amount); err != nil {
				a.printError(err)
			} else {
				fmt.Printf("Deposited %s. New balance: %s\n",
					formatAmount(entry.Amount), formatAmount(updated.Balances.Current))
			}
		case "3":
			fmt.Printf("Current:    %s\n", formatAmount(account.Balances.Current))
			fmt.Printf("Savings:    %s\n", formatAmount(account.Balances.Savings))
			fmt.Printf("Investment: %s\n", formatAmount(account.Balances.Investment))
			fmt.Printf("Total:      %s\n", formatAmount(a.engine.ComputeTotalBalance(account)))
		case "4":
			destination := a.prompt("Destination card number")
			amount, ok := a.promptAmount("Amount to transfer")
			if !ok {
				continue
			}
			note := a.prompt("Note (optional)")
			if updated, _, err := a.engine.Transfer(account, destination, amount, note); err != nil {
				a.printError(err)
			} else {
				fmt.Printf("Transferred %s to %s. New balance: %s\n",
					formatAmount(amount), destination, formatAmount(updated.Balances.Current))
			}
		case "5":
			kind := domain.BillKind(a.prompt("Bill kind (electricity/water/gas/phone)"))
			reference := a.prompt("Bill reference number")
			amount, ok := a.promptAmount("Amount")
			if !ok {
				continue
			}
			if updated, _, err := a.engine.PayBill(account, kind, reference, amount); err != nil {
				a.printError(err)
			} else {
				fmt.Printf("Bill paid. New balance: %s\n", formatAmount(updated.Balances.Current))
			}
		case "6":
			for _, entry := range a.engine.Statement(account, 10) {
				fmt.Printf("%s  %-8s  %12s  balance %12s  %s\n",
					entry.Timestamp.Local().Format("2006-01-02 15:04"),
					entry.Kind,
					formatAmount(entry.Amount),
					formatAmount(entry.ResultingBalance),
					entry.Description)
			}
		case "7":
			if err := a.sessions.Logout(); err != nil {
				a.printError(err)
			}
			return
		}
	}
}

func (a *app) prompt(label string) string {
	fmt.Printf("%s: ", label)
	if !a.in.Scan() {
		os.Exit(0)
	}
	return strings.TrimSpace(a.in.Text())
}

func (a *app) promptAmount(label string) (int64, bool) {
	raw := strings.ReplaceAll(a.prompt(label), ",", "")
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		fmt.Println("Enter a whole number")
		return 0, false
	}
	return amount, true
}

func (a *app) printError(err error) {
	if appErr, ok := err.(*errors.AppError); ok {
		fmt.Println(appErr.Message)
		return
	}
	fmt.Println("Something went wrong, please try again")
}

// formatAmount renders minor units with thousands separators.
func formatAmount(amount int64) string {
	digits := strconv.FormatInt(amount, 10)
	negative := strings.HasPrefix(digits, "-")
	if negative {
		digits = digits[1:]
	}

	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if negative {
		return "-" + b.String()
	}
	return b.String()
}
