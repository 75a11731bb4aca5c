package api

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ID is a server identifier. The API has returned both JSON strings and
// numbers for ids, so both decode into the same string form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Listing is a marketplace product as returned by the API.
type Listing struct {
	ID            ID       `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Condition     string   `json:"condition"`
	OwnerID       ID       `json:"ownerId"`
	OwnerUsername string   `json:"ownerUsername"`
	Location      string   `json:"location"`
	Price         float64  `json:"price"`
	Stock         int      `json:"stock"`
	Content       []string `json:"content"`
	CreatedAt     string   `json:"createdAt"`
}

// PriceString formats the price with two decimals.
func (l Listing) PriceString() string {
	return strconv.FormatFloat(l.Price, 'f', 2, 64)
}

// UserProfile is the public profile of a user.
type UserProfile struct {
	ID         ID     `json:"id"`
	Username   string `json:"username"`
	Name       string `json:"name"`
	Surname    string `json:"surname"`
	Bio        string `json:"bio"`
	ProfilePic string `json:"profilePic"`
	Sales      int    `json:"num_sales"`
	// Posts is not sent by the server; callers count the owner's listings.
	Posts      int    `json:"-"`
}

// UploadTarget pairs a short-lived write URL with the stable read URL of the
// same object.
type UploadTarget struct {
	UploadURL string `json:"uploadUrl"`
	BlobURL   string `json:"blobUrl"`
}

// RegisterRequest is the body of POST /user/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// PublishRequest is the body of POST /product/publish.
type PublishRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Condition   string   `json:"condition"`
	Location    string   `json:"location"`
	Price       float64  `json:"price"`
	Stock       int      `json:"stock"`
	ContentURLs []string `json:"content_urls"`
}

// OrderRequest is the body of POST /order/placeOrder.
type OrderRequest struct {
	SellerID         string  `json:"sellerId"`
	CustomerLocation string  `json:"customerLocation"`
	ProductLocation  string  `json:"productLocation"`
	FinalPrice       float64 `json:"finalPrice"`
	ProductID        string  `json:"productId"`
	CardNum          string  `json:"cardNum"`
	Expiry           string  `json:"expiry"`
	CVV              string  `json:"cvv"`
}

type recommendedResponse struct {
	Products []Listing `json:"products"`
}
