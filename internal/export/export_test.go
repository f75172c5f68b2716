package export

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gooms-backend/internal/database/dbtest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var sample = Table{
	Title:   "Sales",
	Headers: []string{"ID", "Customer", "Total"},
	Rows: [][]string{
		{"1", "Corner Deli", "21.00"},
		{"2", "Smith, Jones & Co", "7.50"},
	},
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}

func TestRender_CSV(t *testing.T) {
	body, contentType, ext, err := Render(FormatCSV, sample)
	require.NoError(t, err)
	assert.Equal(t, "csv", ext)
	assert.Contains(t, contentType, "text/csv")
	assert.Equal(t, "ID,Customer,Total\n1,Corner Deli,21.00\n2,\"Smith, Jones & Co\",7.50\n", string(body))
}

func TestRender_XLSX(t *testing.T) {
	body, contentType, ext, err := Render(FormatXLSX, sample)
	require.NoError(t, err)
	assert.Equal(t, "xlsx", ext)
	assert.Equal(t, contentTypeXLSX, contentType)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sales")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"ID", "Customer", "Total"}, rows[0])
	assert.Equal(t, "Smith, Jones & Co", rows[2][1])
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Report", sheetName(""))
	assert.Equal(t, "Q1-Q2", sheetName("Q1/Q2"))
	assert.Len(t, sheetName(strings.Repeat("x", 40)), 31)
}

func TestObjectKey(t *testing.T) {
	now := time.Date(2025, 3, 12, 15, 4, 5, 0, time.UTC)
	key := ObjectKey("exports/", "sales", "xlsx", now)
	assert.True(t, strings.HasPrefix(key, "exports/sales/2025/03/sales-20250312-150405-"), key)
	assert.True(t, strings.HasSuffix(key, ".xlsx"), key)
}

type fakeS3 struct {
	in   *s3.PutObjectInput
	body []byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Uploader_Upload(t *testing.T) {
	fake := &fakeS3{}
	u := &S3Uploader{client: fake, bucket: "reports"}

	require.NoError(t, u.Upload(context.Background(), "exports/a.csv", contentTypeCSV, []byte("a,b\n")))
	assert.Equal(t, "reports", *fake.in.Bucket)
	assert.Equal(t, "exports/a.csv", *fake.in.Key)
	assert.Equal(t, contentTypeCSV, *fake.in.ContentType)
	assert.Equal(t, "a,b\n", string(fake.body))
}

type memUploader struct{ keys []string }

func (m *memUploader) Upload(_ context.Context, key, _ string, _ []byte) error {
	m.keys = append(m.keys, key)
	return nil
}

func TestExportHandler_Errors(t *testing.T) {
	app := fiber.New()
	app.Get("/api/export/:resource", ExportHandler(nil, "exports/"))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/export/users", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/export/sales?format=pdf", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/export/sales?store=true", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func productRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "sku", "name", "category", "unit", "unit_cost", "unit_price", "reorder_level", "is_active"}).
		AddRow(1, "JAM-250", "Strawberry jam", "preserves", "jar", "1.2", "3.5", "20", true)
}

func TestExportHandler_ProductsCSV(t *testing.T) {
	mock := dbtest.Mock(t)
	mock.ExpectQuery(`SELECT \* FROM "products" ORDER BY sku ASC LIMIT \$1`).
		WillReturnRows(productRows())

	app := fiber.New()
	app.Get("/api/export/:resource", ExportHandler(nil, "exports/"))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/export/products", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="products-`)

	body, _ := io.ReadAll(resp.Body)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "1,JAM-250,Strawberry jam,preserves,jar,1.2,3.5,20,true", lines[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportHandler_Store(t *testing.T) {
	mock := dbtest.Mock(t)
	mock.ExpectQuery(`SELECT \* FROM "products"`).WillReturnRows(productRows())

	up := &memUploader{}
	app := fiber.New()
	app.Get("/api/export/:resource", ExportHandler(up, "exports/"))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/export/products?format=xlsx&store=true", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Len(t, up.keys, 1)
	assert.True(t, strings.HasSuffix(up.keys[0], ".xlsx"))
}
