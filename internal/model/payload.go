package model

type (
	// A Coin is a fungible balance owned by an address.
	Coin struct {
		ID    string `codec:"id"`
		Value uint64 `codec:"value"`
	}

	// A Clock gives the ledger time of the executing transaction.
	Clock struct {
		ID          string `codec:"id"`
		TimestampMs uint64 `codec:"timestamp_ms"`
	}

	// A ContentRegistry is the shared anchor of all published contents.
	ContentRegistry struct {
		ID    string `codec:"id"`
		Owner string `codec:"owner"`
	}

	// A ContentItem is a purchasable unit of content.
	// Its price and creator never change once published.
	ContentItem struct {
		ID          string `codec:"id"`
		Title       string `codec:"title"`
		Description string `codec:"description"`
		Price       uint64 `codec:"price"`
		ContentURL  string `codec:"content_url"`
		Creator     string `codec:"creator"`
	}

	// An AccessReceipt is the proof that Purchaser paid for ContentID.
	AccessReceipt struct {
		ID           string `codec:"id"`
		ContentID    string `codec:"content_id"`
		ContentTitle string `codec:"content_title"`
		PricePaid    uint64 `codec:"price_paid"`
		Purchaser    string `codec:"purchaser"`
		Timestamp    uint64 `codec:"timestamp"`
	}
)

// TypeTag implements Payload.
func (*Coin) TypeTag() string { return TypeCoin }

// ObjectID implements Payload.
func (c *Coin) ObjectID() string { return c.ID }

// TypeTag implements Payload.
func (*Clock) TypeTag() string { return TypeClock }

// ObjectID implements Payload.
func (c *Clock) ObjectID() string { return c.ID }

// TypeTag implements Payload.
func (*ContentRegistry) TypeTag() string { return TypeContentRegistry }

// ObjectID implements Payload.
func (r *ContentRegistry) ObjectID() string { return r.ID }

// TypeTag implements Payload.
func (*ContentItem) TypeTag() string { return TypeContentItem }

// ObjectID implements Payload.
func (c *ContentItem) ObjectID() string { return c.ID }

// TypeTag implements Payload.
func (*AccessReceipt) TypeTag() string { return TypeAccessReceipt }

// ObjectID implements Payload.
func (r *AccessReceipt) ObjectID() string { return r.ID }
