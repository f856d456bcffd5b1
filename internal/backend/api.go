package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veraticus/jobdeck/internal/common"
	"github.com/Veraticus/jobdeck/internal/model"
)

// Accounts returns every account row.
func (c *Client) Accounts(ctx context.Context) ([]model.AccountRow, error) {
	var rows []model.AccountRow
	if err := c.getJSON(ctx, "/api/data", &rows); err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	return rows, nil
}

// PurchaseAccounts returns all accounts and the subset eligible for purchase.
func (c *Client) PurchaseAccounts(ctx context.Context) (all, eligible []model.AccountRow, err error) {
	var resp struct {
		All      []model.AccountRow `json:"all_accounts"`
		Eligible []model.AccountRow `json:"eligible_accounts"`
	}
	if err := c.getJSON(ctx, "/api/purchase/accounts", &resp); err != nil {
		return nil, nil, fmt.Errorf("failed to load purchase accounts: %w", err)
	}
	return resp.All, resp.Eligible, nil
}

// Locations reports whether preset locations exist.
func (c *Client) Locations(ctx context.Context) (model.LocationInfo, error) {
	var info model.LocationInfo
	if err := c.getJSON(ctx, "/api/locations", &info); err != nil {
		return model.LocationInfo{}, fmt.Errorf("failed to load locations: %w", err)
	}
	return info, nil
}

// CalculateMax asks the backend how many submissions remain for an identity.
func (c *Client) CalculateMax(ctx context.Context, email string) (model.QuotaResult, error) {
	var resp struct {
		Error string `json:"error"`
		model.QuotaResult
	}
	if err := c.postJSON(ctx, "/api/generator/calculate-max", map[string]string{"email": email}, &resp); err != nil {
		return model.QuotaResult{}, fmt.Errorf("failed to calculate max: %w", err)
	}
	if resp.Error != "" {
		return model.QuotaResult{}, common.NewUserError(resp.Error, nil)
	}
	return resp.QuotaResult, nil
}

// Merchandise lists saved merchandise.
func (c *Client) Merchandise(ctx context.Context) ([]model.Merchandise, error) {
	var resp struct {
		Items []model.Merchandise `json:"merchandise"`
	}
	if err := c.getJSON(ctx, "/api/merchandise", &resp); err != nil {
		return nil, fmt.Errorf("failed to load merchandise: %w", err)
	}
	return resp.Items, nil
}

// AddMerchandise saves a merchandise item.
func (c *Client) AddMerchandise(ctx context.Context, item model.Merchandise) error {
	var resp actionResponse
	if err := c.postJSON(ctx, "/api/merchandise/add", item, &resp); err != nil {
		return fmt.Errorf("failed to add merchandise: %w", err)
	}
	return resp.err()
}

// Sessions lists open purchase sessions.
func (c *Client) Sessions(ctx context.Context) ([]model.SessionRecord, error) {
	var resp struct {
		Sessions []model.SessionRecord `json:"sessions"`
	}
	if err := c.getJSON(ctx, "/api/purchase/sessions", &resp); err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	return resp.Sessions, nil
}

// PaymentStats returns payment setup progress and the next suggested account.
func (c *Client) PaymentStats(ctx context.Context) (model.PaymentStats, error) {
	var stats model.PaymentStats
	if err := c.getJSON(ctx, "/api/payment/stats", &stats); err != nil {
		return model.PaymentStats{}, fmt.Errorf("failed to load payment stats: %w", err)
	}
	return stats, nil
}

// SetCardAlias records the card alias for an account, finishing its payment session.
func (c *Client) SetCardAlias(ctx context.Context, email, alias string) error {
	body := map[string]string{"email": email, "card_alias": alias}
	var resp actionResponse
	if err := c.postJSON(ctx, "/api/payment/set-alias", body, &resp); err != nil {
		return fmt.Errorf("failed to set card alias: %w", err)
	}
	return resp.err()
}

// Config is the backend's own configuration.
type Config struct {
	BaseURL string `json:"base_url"`
}

// Config fetches the backend configuration.
func (c *Client) Config(ctx context.Context) (Config, error) {
	var cfg Config
	if err := c.getJSON(ctx, "/api/config", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load backend config: %w", err)
	}
	return cfg, nil
}

// SetBaseURL changes the site URL the backend automates against.
func (c *Client) SetBaseURL(ctx context.Context, baseURL string) (Config, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return Config{}, common.NewUserError("base url is required", nil)
	}
	var resp struct {
		Status string `json:"status"`
		Config Config `json:"config"`
	}
	if err := c.postJSON(ctx, "/api/config", Config{BaseURL: baseURL}, &resp); err != nil {
		return Config{}, fmt.Errorf("failed to set base url: %w", err)
	}
	return resp.Config, nil
}

// SkipPayment closes the payment session of email. It works for sessions
// opened by another process.
func (c *Client) SkipPayment(ctx context.Context, email string) error {
	return c.sessionAction(ctx, "/api/payment/skip", email)
}

// StopPurchase closes the purchase session of email.
func (c *Client) StopPurchase(ctx context.Context, email string) error {
	return c.sessionAction(ctx, "/api/purchase/stop", email)
}

func (c *Client) sessionAction(ctx context.Context, path, email string) error {
	var resp actionResponse
	if err := c.postJSON(ctx, path, model.SessionRequest{Email: email}, &resp); err != nil {
		return err
	}
	return resp.err()
}
