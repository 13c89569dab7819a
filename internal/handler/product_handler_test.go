package handler_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/barbartender/bartender/internal/pkg/errcode"
)

func workbookBytes(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func uploadRequest(t *testing.T, name string, content []byte, token string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/import", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestProductsRequireAuth(t *testing.T) {
	env := setupRouter(t)
	resp := env.request(t, http.MethodGet, "/api/v1/products", "")
	require.Equal(t, errcode.ErrUnauthorized, resp.Code)
}

func TestImportListDelete(t *testing.T) {
	env := setupRouter(t)
	token := env.signup(t, "erin", "erin@x.com")

	content := workbookBytes(t, [][]interface{}{
		{"Description", "Supplier", "Category", "Sub Category", "Item Level", "Unit", "Cost/Unit (AED)"},
		{"Smirnoff Red", "MMI", "Beverage", "Vodka", "Primary", "bottle", "55.5"},
		{"Lime", "", "Food", "Fruits", "Secondary", "kg", "8"},
		{"", "", "", "", "", "", ""},
	})
	resp := env.do(t, uploadRequest(t, "stock.xlsx", content, token))
	require.Equal(t, 0, resp.Code, resp.Msg)
	var report struct {
		Total   int `json:"total"`
		Created int `json:"created"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &report))
	require.Equal(t, 2, report.Created)

	resp = env.request(t, http.MethodGet, "/api/v1/products?category=Vodka", token)
	require.Equal(t, 0, resp.Code)
	var list struct {
		Items []struct {
			ID          string `json:"id"`
			Description string `json:"description"`
		} `json:"items"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	require.Equal(t, 1, list.Total)
	require.Equal(t, "Smirnoff Red", list.Items[0].Description)

	resp = env.request(t, http.MethodGet, "/api/v1/products?level=bogus", token)
	require.Equal(t, errcode.ErrInvalid, resp.Code)

	resp = env.request(t, http.MethodGet, "/api/v1/products/categories", token)
	require.Equal(t, 0, resp.Code)
	require.Contains(t, string(resp.Data), "Vodka")

	other := env.signup(t, "frank", "frank@x.com")
	resp = env.request(t, http.MethodDelete, "/api/v1/products/"+list.Items[0].ID, other)
	require.Equal(t, errcode.ErrNotFound, resp.Code)

	resp = env.request(t, http.MethodDelete, "/api/v1/products/"+list.Items[0].ID, token)
	require.Equal(t, 0, resp.Code)

	resp = env.request(t, http.MethodDelete, "/api/v1/products", token)
	require.Equal(t, 0, resp.Code)
	require.Contains(t, string(resp.Data), `"deleted":1`)
}

func TestImportRejectsBadFiles(t *testing.T) {
	env := setupRouter(t)
	token := env.signup(t, "gina", "gina@x.com")

	resp := env.do(t, uploadRequest(t, "stock.csv", []byte("a,b"), token))
	require.Equal(t, errcode.ErrInvalidFile, resp.Code)

	resp = env.do(t, uploadRequest(t, "stock.xlsx", make([]byte, 2*1024*1024), token))
	require.Equal(t, errcode.ErrInvalidFile, resp.Code)
	require.Contains(t, resp.Msg, "1MB")

	content := workbookBytes(t, [][]interface{}{{"Name", "Price"}, {"x", "1"}})
	resp = env.do(t, uploadRequest(t, "stock.xlsx", content, token))
	require.Equal(t, errcode.ErrInvalidFile, resp.Code)
}

func TestArchiveDownloadWithoutStore(t *testing.T) {
	env := setupRouter(t)
	token := env.signup(t, "hank", "hank@x.com")
	resp := env.request(t, http.MethodGet, "/api/v1/products/imports/missing.xlsx", token)
	require.Equal(t, errcode.ErrNotFound, resp.Code)
}

type productData struct {
	ID               string  `json:"id"`
	UniqueItemNumber string  `json:"unique_item_number"`
	ItemCode         string  `json:"item_code"`
	Description      string  `json:"description"`
	SubCategory      string  `json:"sub_category"`
	ItemLevel        string  `json:"item_level"`
	CostPerUnit      float64 `json:"cost_per_unit"`
}

func TestCreateUpdateDeleteSelectedProducts(t *testing.T) {
	env := setupRouter(t)
	token := env.signup(t, "gale", "gale@x.com")

	resp := env.postJSON(t, "/api/v1/products", map[string]interface{}{
		"description": "Tanqueray", "category": "Beverage", "sub_category": "Gin", "cost_per_unit": 95,
	}, token)
	require.Equal(t, 0, resp.Code, resp.Msg)
	var tanq productData
	require.NoError(t, json.Unmarshal(resp.Data, &tanq))
	require.Equal(t, "ITEM-000001", tanq.UniqueItemNumber)
	require.Equal(t, "BB001", tanq.ItemCode)
	require.Equal(t, "Primary", tanq.ItemLevel)

	resp = env.postJSON(t, "/api/v1/products", map[string]interface{}{
		"unique_item_number": "ITEM-000001", "description": "Gordon's", "category": "Beverage", "sub_category": "Gin",
	}, token)
	require.Equal(t, errcode.ErrConflict, resp.Code)
	require.Equal(t, "unique item number already exists", resp.Msg)

	resp = env.postJSON(t, "/api/v1/products", map[string]interface{}{"description": "Lime"}, token)
	require.Equal(t, errcode.ErrInvalid, resp.Code)

	resp = env.postJSON(t, "/api/v1/products", map[string]interface{}{
		"description": "Lime", "category": "Food", "sub_category": "Fruits", "item_level": "secondary",
	}, token)
	require.Equal(t, 0, resp.Code, resp.Msg)
	var lime productData
	require.NoError(t, json.Unmarshal(resp.Data, &lime))

	resp = env.sendJSON(t, http.MethodPut, "/api/v1/products/"+tanq.ID, map[string]interface{}{
		"description": "Tanqueray Ten", "category": "Beverage", "sub_category": "Gin", "cost_per_unit": 140,
	}, token)
	require.Equal(t, 0, resp.Code, resp.Msg)
	var updated productData
	require.NoError(t, json.Unmarshal(resp.Data, &updated))
	require.Equal(t, "Tanqueray Ten", updated.Description)
	require.Equal(t, float64(140), updated.CostPerUnit)
	require.Equal(t, tanq.UniqueItemNumber, updated.UniqueItemNumber)

	resp = env.sendJSON(t, http.MethodPut, "/api/v1/products/missing", map[string]interface{}{
		"description": "X", "category": "Beverage", "sub_category": "Gin",
	}, token)
	require.Equal(t, errcode.ErrNotFound, resp.Code)

	other := env.signup(t, "hal", "hal@x.com")
	resp = env.postJSON(t, "/api/v1/products/delete", map[string]interface{}{"ids": []string{tanq.ID}}, other)
	require.Equal(t, 0, resp.Code)
	var deleted struct {
		Deleted int64 `json:"deleted"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &deleted))
	require.Equal(t, int64(0), deleted.Deleted)

	resp = env.postJSON(t, "/api/v1/products/delete", map[string]interface{}{"ids": []string{}}, token)
	require.Equal(t, errcode.ErrInvalid, resp.Code)

	resp = env.postJSON(t, "/api/v1/products/delete", map[string]interface{}{"ids": []string{tanq.ID, lime.ID}}, token)
	require.Equal(t, 0, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &deleted))
	require.Equal(t, int64(2), deleted.Deleted)

	resp = env.request(t, http.MethodGet, "/api/v1/products", token)
	var list struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	require.Equal(t, 0, list.Total)
}
