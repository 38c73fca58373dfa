package publishers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"apron/models"
)

type HTTPPublisher struct {
	client *http.Client
	method string
	url    string
}

type HTTPPublisherOptions struct {
	Method string
	URL    string
}

func NewHTTPPublisher(opt *HTTPPublisherOptions) *HTTPPublisher {
	method := opt.Method
	if method == "" {
		method = http.MethodPost
	}
	return &HTTPPublisher{
		client: http.DefaultClient,
		method: method,
		url:    opt.URL,
	}
}

func (*HTTPPublisher) ID() string {
	return HTTPPublisherID
}

func (p *HTTPPublisher) Send(frame *models.Frame) error {
	body, err := encode(frame)
	if err != nil {
		return err
	}
	r, err := http.NewRequest(p.method, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s", p.method, p.url, resp.Status)
	}
	return nil
}

func (*HTTPPublisher) Exit() error {
	return nil
}
