package tests

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/claveora/OSIS-Integrated-Administration/osis/services"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type httpTestRequest struct {
	api http.Handler

	method   string
	endpoint string
	headers  map[string]string
	json     interface{}
	body     io.Reader
	login    *loginInfo
}

func newHttpTestRequest(api http.Handler, method, endpoint string) *httpTestRequest {
	return &httpTestRequest{
		api:      api,
		method:   method,
		endpoint: endpoint,
		headers:  nil,
		json:     nil,
		body:     nil,
	}
}

func (r *httpTestRequest) Header(key, value string) *httpTestRequest {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

func (r *httpTestRequest) Login(email, password string) *httpTestRequest {
	r.login = &loginInfo{Email: email, Password: password}
	return r
}

func (r *httpTestRequest) Auth(token string) *httpTestRequest {
	return r.Header("Authorization", fmt.Sprintf("Bearer %v", token))
}

func (r *httpTestRequest) Json(data interface{}) *httpTestRequest {
	r.json = data
	return r
}

func (r *httpTestRequest) Body(body io.Reader) *httpTestRequest {
	r.body = body
	return r
}

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrUnprocessable = errors.New("unprocessable")
)

// response body will be parsed into result, passing nil indicates that no result is returned.
func (r *httpTestRequest) Do(result interface{}) error {
	if r.json != nil {
		body := new(bytes.Buffer)
		err := json.NewEncoder(body).Encode(r.json)
		if err != nil {
			return fmt.Errorf("error encoding json body for endpoint %v: %w", r.endpoint, err)
		}
		r.body = body
	}

	req := httptest.NewRequest(r.method, r.endpoint, r.body)
	if r.headers != nil {
		for k, v := range r.headers {
			req.Header.Add(k, v)
		}
	}

	if r.login != nil {
		req.SetBasicAuth(r.login.Email, r.login.Password)
	}

	w := httptest.NewRecorder()

	r.api.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		switch res.StatusCode {
		case http.StatusUnauthorized:
			return ErrUnauthorized
		case http.StatusForbidden:
			return ErrForbidden
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusConflict:
			return ErrConflict
		case http.StatusUnprocessableEntity:
			return ErrUnprocessable
		}
		return fmt.Errorf("%v request to endpoint %v returned status %d, content '%v'", r.method, r.endpoint, res.StatusCode, w.Body.String())
	}

	if result != nil {
		err := json.NewDecoder(res.Body).Decode(result)
		if err != nil {
			return fmt.Errorf("error parsing %v response from endpoint %v: %w", r.method, r.endpoint, err)
		}
	}

	return nil
}

type client struct {
	api       chi.Router
	authToken string
	userId    string
}

func (c *client) Get(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "GET", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Post(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "POST", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Delete(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "DELETE", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

type loginInfo struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *client) login(login loginInfo) error {
	var res map[string]string
	err := c.Post("/users/login").Login(login.Email, login.Password).Do(&res)
	if err != nil {
		return err
	}

	c.authToken = res["access_token"]
	c.userId = res["user_id"]

	return nil
}

func (c *client) createUser(username, email, password string, roleId uuid.UUID) (loginInfo, error) {
	body := map[string]interface{}{
		"name": username, "username": username, "email": email, "password": password, "role_id": roleId,
	}

	err := c.Post("/users").Json(body).Do(nil)
	if err != nil {
		return loginInfo{}, err
	}

	return loginInfo{Email: email, Password: password}, nil
}

func (c *client) createRole(name string, permissions []map[string]interface{}) (string, error) {
	body := map[string]interface{}{"name": name, "permissions": permissions}

	var res struct {
		Data struct {
			Id string `json:"id"`
		} `json:"data"`
	}
	err := c.Post("/settings/roles").Json(body).Do(&res)
	return res.Data.Id, err
}

func (c *client) replacePermissions(roleId string, permissions []map[string]interface{}) error {
	body := map[string]interface{}{"permissions": permissions}
	return c.Post(fmt.Sprintf("/settings/roles/%v/permissions", roleId)).Json(body).Do(nil)
}

func (c *client) createDivision(name, description string) (string, error) {
	body := map[string]string{"name": name, "description": description}

	var res struct {
		Data struct {
			Id string `json:"id"`
		} `json:"data"`
	}
	err := c.Post("/divisions").Json(body).Do(&res)
	return res.Data.Id, err
}

func (c *client) listDivisions() ([]services.DivisionInfo, error) {
	var res []services.DivisionInfo
	err := c.Get("/divisions").Do(&res)
	return res, err
}

type prokerData struct {
	Id        string `json:"id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	Divisions []struct {
		Id   string `json:"id"`
		Name string `json:"name"`
	} `json:"divisions"`
	Anggota []struct {
		Id     string `json:"id"`
		UserId string `json:"user_id"`
		Role   string `json:"role"`
	} `json:"anggota"`
	Media []struct {
		Id        string `json:"id"`
		MediaType string `json:"media_type"`
		MediaUrl  string `json:"media_url"`
	} `json:"media"`
}

func (c *client) createProker(title string, divisionIds []string) (string, error) {
	body := map[string]interface{}{
		"title":        title,
		"date":         time.Now().UTC(),
		"division_ids": divisionIds,
	}

	var res struct {
		Data prokerData `json:"data"`
	}
	err := c.Post("/prokers").Json(body).Do(&res)
	return res.Data.Id, err
}

func (c *client) updateProker(prokerId string, body map[string]interface{}) (prokerData, error) {
	var res struct {
		Data prokerData `json:"data"`
	}
	err := c.Post(fmt.Sprintf("/prokers/%v", prokerId)).Json(body).Do(&res)
	return res.Data, err
}

func (c *client) getProker(prokerId string) (prokerData, error) {
	var res prokerData
	err := c.Get(fmt.Sprintf("/prokers/%v", prokerId)).Do(&res)
	return res, err
}

func (c *client) addAnggota(prokerId, userId, role string) (string, error) {
	body := map[string]interface{}{"user_id": userId, "role": role}

	var res struct {
		Id string `json:"id"`
	}
	err := c.Post(fmt.Sprintf("/prokers/%v/anggota", prokerId)).Json(body).Do(&res)
	return res.Id, err
}

func (c *client) removeAnggota(prokerId, anggotaId string) error {
	return c.Delete(fmt.Sprintf("/prokers/%v/anggota/%v", prokerId, anggotaId)).Do(nil)
}

func (c *client) addMediaUrl(prokerId, mediaType, mediaUrl string) (string, error) {
	body := map[string]string{"media_type": mediaType, "media_url": mediaUrl}

	var res struct {
		Id string `json:"id"`
	}
	err := c.Post(fmt.Sprintf("/prokers/%v/media/url", prokerId)).Json(body).Do(&res)
	return res.Id, err
}

func (c *client) uploadMedia(prokerId, filename string, content []byte) (string, string, error) {
	body := new(bytes.Buffer)
	form := multipart.NewWriter(body)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return "", "", err
	}
	if _, err := part.Write(content); err != nil {
		return "", "", err
	}
	if err := form.Close(); err != nil {
		return "", "", err
	}

	var res struct {
		Id       string `json:"id"`
		MediaUrl string `json:"media_url"`
	}
	err = c.Post(fmt.Sprintf("/prokers/%v/media", prokerId)).
		Header("Content-Type", form.FormDataContentType()).
		Body(body).
		Do(&res)
	return res.Id, res.MediaUrl, err
}

func (c *client) removeMedia(prokerId, mediaId string) error {
	return c.Delete(fmt.Sprintf("/prokers/%v/media/%v", prokerId, mediaId)).Do(nil)
}

func (c *client) gallery() ([]services.GalleryItem, error) {
	var res []services.GalleryItem
	err := c.Get("/prokers/gallery").Do(&res)
	return res, err
}

func (c *client) createTransaction(title, txnType string, amount float64, date time.Time) (string, error) {
	body := map[string]interface{}{
		"title": title, "type": txnType, "amount": amount, "date": date,
	}

	var res struct {
		Data struct {
			Id string `json:"id"`
		} `json:"data"`
	}
	err := c.Post("/transactions").Json(body).Do(&res)
	return res.Data.Id, err
}

func (c *client) transactionStatistics() (services.TransactionStatistics, error) {
	var res services.TransactionStatistics
	err := c.Get("/transactions/statistics").Do(&res)
	return res, err
}

func (c *client) monthlyTransactions(year int) ([]services.MonthlyAggregate, error) {
	var res []services.MonthlyAggregate
	err := c.Get(fmt.Sprintf("/transactions/monthly?year=%d", year)).Do(&res)
	return res, err
}

type messageData struct {
	Id      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Status  string `json:"status"`
}

func (c *client) sendMessage(name, email, subject, body string) error {
	payload := map[string]string{"name": name, "email": email, "subject": subject, "body": body}
	return c.Post("/messages").Json(payload).Do(nil)
}

func (c *client) listMessages(query string) ([]messageData, error) {
	endpoint := "/messages"
	if query != "" {
		endpoint += "?" + query
	}

	var res struct {
		Data []messageData `json:"data"`
	}
	err := c.Get(endpoint).Do(&res)
	return res.Data, err
}

func (c *client) getMessage(messageId string) (messageData, error) {
	var res messageData
	err := c.Get(fmt.Sprintf("/messages/%v", messageId)).Do(&res)
	return res, err
}

func (c *client) updateMessageStatus(messageId, status string) error {
	body := map[string]string{"status": status}
	return c.Post(fmt.Sprintf("/messages/%v/status", messageId)).Json(body).Do(nil)
}

func (c *client) getSettings() (map[string]string, error) {
	var res map[string]string
	err := c.Get("/settings").Do(&res)
	return res, err
}

func (c *client) updateSettings(settings map[string]string) error {
	body := map[string]interface{}{"settings": settings}
	return c.Post("/settings").Json(body).Do(nil)
}

func (c *client) dashboardSummary() (services.DashboardSummary, error) {
	var res services.DashboardSummary
	err := c.Get("/dashboard").Do(&res)
	return res, err
}
