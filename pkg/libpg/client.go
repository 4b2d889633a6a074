package libpg

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/mdouchement/paygate/pkg/paytx"
	"github.com/pkg/errors"
)

// HeaderPaymentAddress is the header carrying the address of the requester.
const HeaderPaymentAddress = "X-Payment-Address"

type (
	// A Client defines all interactions that can be performed on a paygate server.
	Client interface {
		// Version returns the version of the paygate server.
		Version() (string, error)
		// Contents lists the published contents.
		Contents() ([]Content, error)
		// Content returns the content unlocked by the given address.
		// A *PaymentRequired error is returned if the address does not own an access receipt for it.
		Content(id, address string) (*Content, error)
		// Execute submits a purchase transaction signed by the buyer.
		Execute(id string, txBytes []byte, signature paytx.Signature) (*Execution, error)
		// Receipts lists the access receipts owned by the given address.
		Receipts(address string) ([]Receipt, error)
		// Transaction returns the transaction recorded for the given digest.
		// When wait is true the server waits for the transaction to be recorded.
		Transaction(digest string, wait bool) (*Transaction, error)
		// Transactions lists the transactions sent by the given address, latest first.
		Transactions(sender string) ([]Transaction, error)
	}

	// A Content is a published content. ContentURL is only set once unlocked.
	Content struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Price       string `json:"price"`
		Creator     string `json:"creator"`
		ContentURL  string `json:"contentUrl"`
	}

	// A Receipt proves the purchase of a content.
	Receipt struct {
		ID           string `json:"id"`
		ContentID    string `json:"contentId"`
		ContentTitle string `json:"contentTitle"`
		PricePaid    string `json:"pricePaid"`
		Purchaser    string `json:"purchaser"`
		Timestamp    string `json:"timestamp"`
	}

	// An Execution is the outcome of a submitted transaction.
	Execution struct {
		Digest  string  `json:"digest"`
		Status  string  `json:"status"`
		Effects Effects `json:"effects"`
	}

	// Effects are the changes applied by a transaction.
	Effects struct {
		Status   string         `json:"status"`
		Error    string         `json:"error"`
		ErrorTag string         `json:"errorTag"`
		GasUsed  string         `json:"gasUsed"`
		Changes  []ObjectChange `json:"objectChanges"`
	}

	// An ObjectChange is an object created or mutated by a transaction.
	ObjectChange struct {
		Kind    string `json:"kind"`
		ID      string `json:"objectId"`
		Type    string `json:"type"`
		Owner   string `json:"owner"`
		Version string `json:"version"`
	}

	// A Transaction is a transaction recorded by the ledger.
	Transaction struct {
		Execution
		Sender     string    `json:"sender"`
		GasOwner   string    `json:"gasOwner"`
		Checkpoint uint64    `json:"checkpoint"`
		Signatures []string  `json:"signatures"`
		CreatedAt  time.Time `json:"createdAt"`
	}

	p      map[string]any
	client struct {
		http     *http.Client
		endpoint string
	}
)

// NewDefaultClient returns a new Client with default HTTP client.
func NewDefaultClient(endpoint string) (Client, error) {
	return NewClient(http.DefaultClient, endpoint)
}

// NewClient returns a new Client.
func NewClient(c *http.Client, endpoint string) (Client, error) {
	_, err := url.Parse(endpoint)
	return &client{endpoint: endpoint, http: c}, errors.Wrap(err, "could not parse endpoint")
}

// Succeeded returns true if the transaction has been applied.
func (e *Execution) Succeeded() bool {
	return e.Status == "success"
}

func (c *client) Version() (string, error) {
	var version struct {
		Version string `json:"version"`
	}
	err := c.do(http.MethodGet, "/version", nil, nil, nil, &version)
	return version.Version, err
}

func (c *client) Contents() ([]Content, error) {
	var contents struct {
		Data []Content `json:"data"`
	}
	err := c.do(http.MethodGet, "/content", nil, nil, nil, &contents)
	return contents.Data, err
}

func (c *client) Content(id, address string) (*Content, error) {
	header := http.Header{}
	if address != "" {
		header.Set(HeaderPaymentAddress, address)
	}

	var content Content
	if err := c.do(http.MethodGet, path.Join("/content", id), nil, header, nil, &content); err != nil {
		return nil, err
	}
	return &content, nil
}

func (c *client) Execute(id string, txBytes []byte, signature paytx.Signature) (*Execution, error) {
	body := p{
		"transactionBytes": base64.StdEncoding.EncodeToString(txBytes),
		"signature":        signature.String(),
	}

	var execution Execution
	if err := c.do(http.MethodPost, path.Join("/content", id, "execute"), nil, nil, body, &execution); err != nil {
		return nil, err
	}
	return &execution, nil
}

func (c *client) Receipts(address string) ([]Receipt, error) {
	var receipts []Receipt
	err := c.do(http.MethodGet, path.Join("/receipts", address), nil, nil, nil, &receipts)
	return receipts, err
}

func (c *client) Transaction(digest string, wait bool) (*Transaction, error) {
	query := url.Values{}
	if wait {
		query.Set("wait", strconv.FormatBool(wait))
	}

	var transaction Transaction
	if err := c.do(http.MethodGet, path.Join("/transactions", digest), query, nil, nil, &transaction); err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (c *client) Transactions(sender string) ([]Transaction, error) {
	query := url.Values{}
	query.Set("sender", sender)

	var transactions []Transaction
	err := c.do(http.MethodGet, "/transactions", query, nil, nil, &transactions)
	return transactions, err
}

func (c *client) do(method, route string, query url.Values, header http.Header, payload p, v any) error {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return errors.Wrap(err, "could not parse endpoint")
	}
	u.Path = path.Join(u.Path, route)
	u.RawQuery = query.Encode()

	//
	// Build request
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "could not serialize payload")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, u.String(), body)
	if err != nil {
		return errors.Wrap(err, "could not build request")
	}
	req.Close = true
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	for k := range header {
		req.Header.Set(k, header.Get(k))
	}

	//
	// Perform request
	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "could not perform request")
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return parseError(res.Body, res.StatusCode)
	}

	//
	// Process response
	dec := json.NewDecoder(res.Body)
	return errors.Wrap(dec.Decode(v), "could not parse response")
}
