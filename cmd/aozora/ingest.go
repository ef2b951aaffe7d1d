package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

var ingestTitle string

// ingestCmd indexes a source by URL.
var ingestCmd = &cobra.Command{
	Use:   "ingest URL",
	Short: "Fetch and index a web page",
	Long: `Fetch a web page and index its article body.

Examples:
  # Index a book page
  aozora ingest https://www.aozora.gr.jp/cards/000879/files/127_15260.html

  # Index with a display title
  aozora ingest --title "Rashomon" https://www.aozora.gr.jp/cards/000879/files/127_15260.html`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

// uploadCmd indexes a local PDF.
var uploadCmd = &cobra.Command{
	Use:   "upload FILE",
	Short: "Upload and index a local PDF",
	Long: `Upload a local PDF and index its pages.

Examples:
  # Upload a PDF
  aozora upload book.pdf

  # Upload with a display title
  aozora upload --title "Rashomon" book.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "display title for the document")
	uploadCmd.Flags().StringVar(&ingestTitle, "title", "", "display title for the document")
}

// IngestRequest matches internal/http IngestRequest.
type IngestRequest struct {
	Source string `json:"source"`
	Title  string `json:"title"`
}

// IngestResponse matches internal/http IngestResponse.
type IngestResponse struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}

// UploadResponse matches internal/http UploadResponse.
type UploadResponse struct {
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	reqJSON, err := json.Marshal(IngestRequest{Source: args[0], Title: ingestTitle})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/ingest", serverURL)
	httpReq, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	body, err := doIngestRequest(httpReq, url)
	if err != nil {
		return err
	}

	var resp IngestResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	fmt.Printf("Indexed %s: %d chunks\n", resp.Source, resp.Chunks)
	return nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(args[0]))
	if err != nil {
		return fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	if ingestTitle != "" {
		if err := writer.WriteField("title", ingestTitle); err != nil {
			return fmt.Errorf("failed to build upload: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to build upload: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/upload", serverURL)
	httpReq, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	body, err := doIngestRequest(httpReq, url)
	if err != nil {
		return err
	}

	var resp UploadResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	fmt.Printf("Indexed %s: %d chunks\n", resp.Filename, resp.Chunks)
	return nil
}

// doIngestRequest sends an ingestion request with a generous timeout;
// batched indexing pauses between embedding calls.
func doIngestRequest(httpReq *http.Request, url string) ([]byte, error) {
	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
