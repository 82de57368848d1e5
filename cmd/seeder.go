package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo websites and bank accounts",
	Long:  `Seed the database with demo destination websites and bank accounts for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		gormDB, err := initGorm(db)
		if err != nil {
			log.Fatalf("failed to init orm: %v", err)
		}

		if clearData {
			fmt.Println("Clearing existing websites and bank accounts...")
			if err := gormDB.Exec("DELETE FROM websites").Error; err != nil {
				log.Fatalf("failed to clear websites: %v", err)
			}
			if err := gormDB.Exec("DELETE FROM bank_accounts").Error; err != nil {
				log.Fatalf("failed to clear bank accounts: %v", err)
			}
		}

		websites := []struct {
			Name           string
			WebhookURL     string
			APIKey         string
			SecretKey      string
			Priority       int
			TimeoutSeconds int
			IsEnabled      bool
		}{
			{"Main Store", "http://localhost:8090/webhook/payment", "demo-main-store-key", "demo-main-store-secret", 1, 10, true},
			{"Outlet Store", "http://localhost:8091/webhook/payment", "demo-outlet-store-key", "demo-outlet-store-secret", 2, 10, true},
			{"Preorder Campaign", "http://localhost:8092/webhook/payment", "demo-preorder-key", "demo-preorder-secret", 3, 15, false},
		}

		for _, w := range websites {
			var exists int
			row := gormDB.Raw("SELECT 1 FROM websites WHERE name = ?", w.Name).Row()
			if err := row.Scan(&exists); err == nil {
				fmt.Printf("website %s already exists, skipping\n", w.Name)
				continue
			}

			if err := gormDB.Exec("INSERT INTO websites (name, webhook_url, api_key, secret_key, priority, timeout_seconds, is_enabled, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, 'disconnected', now(), now())",
				w.Name, w.WebhookURL, w.APIKey, w.SecretKey, w.Priority, w.TimeoutSeconds, w.IsEnabled).Error; err != nil {
				log.Fatalf("failed to insert website %s: %v", w.Name, err)
			}
			fmt.Printf("Seeded website: %s (priority %d)\n", w.Name, w.Priority)
		}

		bankAccounts := []struct {
			BankType      string
			AccountNumber string
			AccountName   string
			IsPrimary     bool
		}{
			{"kbank", "123-4-56789-0", "Demo Merchant", true},
			{"scb", "987-6-54321-0", "Demo Merchant", false},
		}

		for _, a := range bankAccounts {
			var exists int
			row := gormDB.Raw("SELECT 1 FROM bank_accounts WHERE bank_type = ? AND account_number = ?", a.BankType, a.AccountNumber).Row()
			if err := row.Scan(&exists); err == nil {
				fmt.Printf("bank account %s/%s already exists, skipping\n", a.BankType, a.AccountNumber)
				continue
			}

			if err := gormDB.Exec("INSERT INTO bank_accounts (bank_type, account_number, account_name, is_enabled, is_primary, created_at, updated_at) VALUES (?, ?, ?, true, ?, now(), now())",
				a.BankType, a.AccountNumber, a.AccountName, a.IsPrimary).Error; err != nil {
				log.Fatalf("failed to insert bank account %s: %v", a.AccountNumber, err)
			}
			fmt.Printf("Seeded bank account: %s %s\n", a.BankType, a.AccountNumber)
		}

		fmt.Println("Demo data seeded successfully")
	},
}
