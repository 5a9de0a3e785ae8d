package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	domainErrors "github.com/omnisouq/gateway/internal/domain/errors"
	"github.com/omnisouq/gateway/internal/domain/shipment"
	"github.com/omnisouq/gateway/internal/domain/webhook"
)

// AramexConfig holds the credentials and endpoint for the Aramex adapter.
type AramexConfig struct {
	BaseURL       string
	AccountNumber string
	AccountPin    string
	Username      string
	Password      string
	WebhookSecret string
	Timeout       time.Duration
}

// AramexProvider is the reference carrier adapter, used across the gulf
// regions and IN.
type AramexProvider struct {
	cfg    AramexConfig
	client *restClient
}

// NewAramexProvider creates an Aramex adapter.
func NewAramexProvider(cfg AramexConfig) *AramexProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://ws.aramex.net"
	}
	p := &AramexProvider{cfg: cfg}
	p.client = newRESTClient(Aramex, cfg.BaseURL, cfg.Timeout, nil)
	return p
}

func (p *AramexProvider) Name() string { return Aramex }

func (p *AramexProvider) clientInfo() map[string]string {
	return map[string]string{
		"AccountNumber": p.cfg.AccountNumber,
		"AccountPin":    p.cfg.AccountPin,
		"UserName":      p.cfg.Username,
		"Password":      p.cfg.Password,
	}
}

// CreateShipment books a shipment and returns the carrier tracking reference.
func (p *AramexProvider) CreateShipment(ctx context.Context, req ShipmentCreateRequest) (*ShipmentResponse, error) {
	body := map[string]any{
		"ClientInfo": p.clientInfo(),
		"Shipments": []map[string]any{{
			"Reference1": req.OrderID,
			"Consignee": map[string]string{
				"Name":        req.CustomerName,
				"City":        req.City,
				"CountryCode": req.Country,
				"Line1":       req.AddressLine,
			},
			"Details": map[string]any{
				"ActualWeight":      map[string]any{"Value": float64(req.WeightGrams) / 1000, "Unit": "KG"},
				"NumberOfPieces":    req.PiecesCount,
				"ProductType":       req.Method,
				"CustomsValue":      map[string]any{"Value": float64(req.DeclaredMinor) / 100, "CurrencyCode": req.Currency},
				"DescriptionOfGoods": "e-commerce order",
			},
		}},
	}

	var resp struct {
		Shipments []struct {
			ID       string `json:"ID"`
			LabelURL string `json:"LabelURL"`
			HasErrors bool  `json:"HasErrors"`
		} `json:"Shipments"`
		HasErrors bool `json:"HasErrors"`
		Notifications []struct {
			Message string `json:"Message"`
		} `json:"Notifications"`
	}
	if err := p.client.doJSON(ctx, http.MethodPost, "/ShippingAPI.V2/Shipping/Service_1_0.svc/json/CreateShipments", body, &resp); err != nil {
		return nil, err
	}
	if resp.HasErrors || len(resp.Shipments) == 0 {
		msg := "shipment creation failed"
		if len(resp.Notifications) > 0 {
			msg = resp.Notifications[0].Message
		}
		return nil, domainErrors.NewProviderError(Aramex, msg, nil)
	}

	return &ShipmentResponse{
		Provider:          Aramex,
		TrackingReference: resp.Shipments[0].ID,
		Status:            shipment.StatusCreated,
		LabelURL:          resp.Shipments[0].LabelURL,
	}, nil
}

// GetRates quotes shipping cost for a destination and weight.
func (p *AramexProvider) GetRates(ctx context.Context, req RateRequest) ([]Rate, error) {
	body := map[string]any{
		"ClientInfo":         p.clientInfo(),
		"OriginAddress":      map[string]string{"CountryCode": req.OriginCountry},
		"DestinationAddress": map[string]string{"CountryCode": req.DestinationCountry, "City": req.DestinationCity},
		"ShipmentDetails": map[string]any{
			"ActualWeight": map[string]any{"Value": float64(req.WeightGrams) / 1000, "Unit": "KG"},
			"ProductType":  req.Method,
		},
	}

	var resp struct {
		TotalAmount struct {
			Value        float64 `json:"Value"`
			CurrencyCode string  `json:"CurrencyCode"`
		} `json:"TotalAmount"`
		HasErrors bool `json:"HasErrors"`
	}
	if err := p.client.doJSON(ctx, http.MethodPost, "/ShippingAPI.V2/RateCalculator/Service_1_0.svc/json/CalculateRate", body, &resp); err != nil {
		return nil, err
	}
	if resp.HasErrors {
		return nil, domainErrors.NewProviderError(Aramex, "rate calculation failed", nil)
	}

	return []Rate{{
		Method:      req.Method,
		AmountMinor: int64(resp.TotalAmount.Value * 100),
		Currency:    resp.TotalAmount.CurrencyCode,
	}}, nil
}

// GetTracking polls the latest tracking state for a shipment.
func (p *AramexProvider) GetTracking(ctx context.Context, trackingReference string) (*TrackingResponse, error) {
	body := map[string]any{
		"ClientInfo": p.clientInfo(),
		"Shipments":  []string{trackingReference},
	}

	var resp struct {
		TrackingResults []struct {
			Key   string `json:"Key"`
			Value []struct {
				UpdateCode        string `json:"UpdateCode"`
				UpdateDescription string `json:"UpdateDescription"`
				UpdateDateTime    string `json:"UpdateDateTime"`
			} `json:"Value"`
		} `json:"TrackingResults"`
		HasErrors bool `json:"HasErrors"`
	}
	if err := p.client.doJSON(ctx, http.MethodPost, "/ShippingAPI.V2/Tracking/Service_1_0.svc/json/TrackShipments", body, &resp); err != nil {
		return nil, err
	}
	if resp.HasErrors || len(resp.TrackingResults) == 0 || len(resp.TrackingResults[0].Value) == 0 {
		return nil, domainErrors.NewProviderError(Aramex, "no tracking data for "+trackingReference, nil)
	}

	latest := resp.TrackingResults[0].Value[0]
	return &TrackingResponse{
		Provider:          Aramex,
		TrackingReference: trackingReference,
		Status:            aramexStatus(latest.UpdateCode),
		Description:       latest.UpdateDescription,
		UpdatedAt:         time.Now(),
	}, nil
}

// ValidateWebhook verifies the hex HMAC-SHA256 over the raw body.
func (p *AramexProvider) ValidateWebhook(payload []byte, signature string) bool {
	return verifyHMACHex(p.cfg.WebhookSecret, payload, signature)
}

type aramexWebhook struct {
	EventID    string `json:"event_id"`
	EventType  string `json:"event_type"`
	WaybillNo  string `json:"waybill_number"`
	UpdateCode string `json:"update_code"`
}

// ProcessWebhook parses an Aramex tracking notification into the canonical
// result.
func (p *AramexProvider) ProcessWebhook(payload []byte) (*WebhookResult, error) {
	var evt aramexWebhook
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("parse aramex webhook: %w", err)
	}
	if evt.EventID == "" || evt.WaybillNo == "" {
		return nil, domainErrors.NewValidationError("payload", "missing event or waybill number")
	}

	return &WebhookResult{
		EventID:        evt.EventID,
		EventType:      evt.EventType,
		Kind:           webhook.KindShipping,
		Reference:      evt.WaybillNo,
		ShipmentStatus: aramexStatus(evt.UpdateCode),
	}, nil
}

func aramexStatus(code string) shipment.Status {
	switch code {
	case "SH001", "SH003":
		return shipment.StatusCreated
	case "SH005", "SH006", "SH012":
		return shipment.StatusInTransit
	case "SH007":
		return shipment.StatusDelivered
	case "SH008", "SH014":
		return shipment.StatusFailed
	default:
		return shipment.StatusInTransit
	}
}
