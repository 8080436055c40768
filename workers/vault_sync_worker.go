package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gem-farm-system/models"
)

// VaultSyncClient polls the custody vault service and mirrors vault rows
// locally, so staking operations can read gem counts without a network hop.
type VaultSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

func NewVaultSyncClient(db *gorm.DB) *VaultSyncClient {
	baseURL := os.Getenv("VAULT_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("VAULT_SERVICE_URL environment variable is required")
	}
	token := os.Getenv("FARM_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("FARM_SERVICE_TOKEN environment variable is required for vault sync")
	}

	return &VaultSyncClient{
		BaseURL: baseURL,
		Token:   token,
		DB:      db,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *VaultSyncClient) GetChangedVaults(ctx context.Context, since time.Time) ([]models.VaultMirror, error) {
	since = since.UTC()

	u, err := url.Parse(fmt.Sprintf("%s/api/v1/public/vaults", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	q := u.Query()
	q.Set("since", since.Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call vault service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("vault service returned status %d: %s", resp.StatusCode, string(body))
	}

	// Decode directly into []models.VaultMirror (reuse same struct)
	var response struct {
		Vaults []models.VaultMirror `json:"vaults"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode vault service response: %w", err)
	}

	return response.Vaults, nil
}

// PollVaults mirrors vault changes into the local DB on a fixed interval.
// The Locked flag is owned locally by the staking transactions, so it is
// deliberately left out of the upsert column list.
func PollVaults(ctx context.Context, client *VaultSyncClient, pollInterval time.Duration) {
	log.Println("Starting vault polling (DB-backed)...")
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Vault polling stopped.")
			return
		case <-ticker.C:
			tickTime := time.Now().UTC()

			vaults, err := client.GetChangedVaults(ctx, lastSyncTime)
			if err != nil {
				log.Printf("❌ Error polling vaults: %v", err)
				continue
			}

			count := len(vaults)
			if count == 0 {
				continue
			}

			if err := client.DB.Clauses(
				clause.OnConflict{
					Columns: []clause.Column{{Name: "id"}},
					DoUpdates: clause.AssignmentColumns([]string{
						"farm_id",
						"farmer_identity",
						"gem_count",
						"last_deposit_at",
						"created_at",
						"updated_at",
					}),
				},
			).Create(&vaults).Error; err != nil {
				log.Printf("❌ Failed to upsert %d vault(s) into vault_mirror: %v", count, err)
				// Do NOT update lastSyncTime on failure — retry same window next tick
				continue
			}

			// Success: advance lastSyncTime to the tick start to avoid
			// reprocessing the same batch (tickTime avoids poll-latency skew)
			lastSyncTime = tickTime
			log.Printf("✅ Upserted %d vault(s) into vault_mirror table.", count)
		}
	}
}

// GetVaultForFarmer queries the local mirror
func GetVaultForFarmer(db *gorm.DB, farmID, farmerIdentity string) (models.VaultMirror, bool, error) {
	var vault models.VaultMirror
	if err := db.Where("farm_id = ? AND farmer_identity = ?", farmID, farmerIdentity).First(&vault).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return vault, false, nil
		}
		return vault, false, err
	}
	return vault, true, nil
}
