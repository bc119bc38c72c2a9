package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// ApiClient handles API requests to the expediter service
type ApiClient struct {
	httpClient *http.Client
	BaseURL    string
}

// NewApiClient creates a new API client
func NewApiClient() *ApiClient {
	baseURL := os.Getenv("EXPEDITER_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	return &ApiClient{
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
		BaseURL: baseURL,
	}
}

// CheckHealth checks if the API is up and running
func (c *ApiClient) CheckHealth() (bool, error) {
	resp, err := c.httpClient.Get(c.BaseURL + "/health")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("API health check failed with status code: %d", resp.StatusCode)
	}
	return true, nil
}

// Order mirrors the server's order view
type Order struct {
	ID           uint       `json:"ID"`
	RestaurantID uint       `json:"RestaurantID"`
	TableSection string     `json:"TableSection"`
	MenuItemID   uint       `json:"MenuItemID"`
	BatchSize    int        `json:"BatchSize"`
	BatchNumber  int        `json:"BatchNumber"`
	Status       string     `json:"Status"`
	TimerStart   *time.Time `json:"TimerStart"`
	TimerEnd     *time.Time `json:"TimerEnd"`
	CompletedAt  *time.Time `json:"CompletedAt"`
}

// Remaining returns the whole seconds left on the order's countdown.
func (o Order) Remaining() int64 {
	if o.TimerEnd == nil {
		return 0
	}
	remaining := time.Until(*o.TimerEnd)
	if remaining < 0 {
		return 0
	}
	return int64(remaining / time.Second)
}

// TimerStatus mirrors the server's remaining-time view
type TimerStatus struct {
	OrderID          uint   `json:"order_id"`
	Status           string `json:"status"`
	RemainingSeconds int64  `json:"remaining_seconds"`
}

type apiError struct {
	Error string `json:"error"`
}

// ListOrders fetches the orders of one restaurant (0 for all)
func (c *ApiClient) ListOrders(restaurantID uint) ([]Order, error) {
	url := fmt.Sprintf("%s/api/v1/orders", c.BaseURL)
	if restaurantID != 0 {
		url = fmt.Sprintf("%s?restaurant=%d", url, restaurantID)
	}
	resp, err := c.httpClient.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var orders []Order
	if err := decode(resp, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// CreateOrder registers a new pending order
func (c *ApiClient) CreateOrder(restaurantID uint, tableSection string) (*Order, error) {
	body := map[string]interface{}{
		"restaurant_id": restaurantID,
		"table_section": tableSection,
	}
	var order Order
	if err := c.post(fmt.Sprintf("%s/api/v1/orders", c.BaseURL), body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// StartTimer starts an order's countdown; 0 minutes asks the server for the
// menu default
func (c *ApiClient) StartTimer(orderID uint, minutes int) (*Order, error) {
	var order Order
	url := fmt.Sprintf("%s/api/v1/orders/%d/timer", c.BaseURL, orderID)
	if err := c.post(url, map[string]int{"minutes": minutes}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ExtendTimer gives an expired order a fresh interval
func (c *ApiClient) ExtendTimer(orderID uint, seconds int) (*Order, error) {
	var order Order
	url := fmt.Sprintf("%s/api/v1/orders/%d/timer/extend", c.BaseURL, orderID)
	if err := c.post(url, map[string]int{"seconds": seconds}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CancelTimer aborts cooking, returning the order to pending
func (c *ApiClient) CancelTimer(orderID uint) (*Order, error) {
	url := fmt.Sprintf("%s/api/v1/orders/%d/timer", c.BaseURL, orderID)
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var order Order
	if err := decode(resp, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CompleteOrder marks an order ready
func (c *ApiClient) CompleteOrder(orderID uint) (*Order, error) {
	var order Order
	url := fmt.Sprintf("%s/api/v1/orders/%d/complete", c.BaseURL, orderID)
	if err := c.post(url, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetTimerStatus fetches the remaining seconds for an order
func (c *ApiClient) GetTimerStatus(orderID uint) (*TimerStatus, error) {
	url := fmt.Sprintf("%s/api/v1/orders/%d/timer", c.BaseURL, orderID)
	resp, err := c.httpClient.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var status TimerStatus
	if err := decode(resp, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// DeleteOrder removes an order and disarms its timer
func (c *ApiClient) DeleteOrder(orderID uint) error {
	url := fmt.Sprintf("%s/api/v1/orders/%d", c.BaseURL, orderID)
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, &map[string]string{})
}

func (c *ApiClient) post(url string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

func decode(resp *http.Response, out interface{}) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return json.Unmarshal(data, out)
}
