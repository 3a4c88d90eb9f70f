package controllers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"

	"fruitvision/internal/classifier"
	"fruitvision/internal/models"
	"fruitvision/internal/providers"
	"fruitvision/internal/storage"
	"fruitvision/internal/structures"
)

const maxUploadSize = 10 << 20 // 10 MB

type ApiController struct {
	logger     providers.Logger
	store      storage.RecordStoreInterface
	analytics  storage.AnalyticsEngineInterface
	classifier classifier.ClassifierInterface
	cache      providers.CacheProviderInterface
	conf       *structures.Config
}

func NewApiController(logger providers.Logger, store storage.RecordStoreInterface, analytics storage.AnalyticsEngineInterface, cls classifier.ClassifierInterface, cache providers.CacheProviderInterface, conf *structures.Config) *ApiController {
	return &ApiController{
		logger:     logger,
		store:      store,
		analytics:  analytics,
		classifier: cls,
		cache:      cache,
		conf:       conf,
	}
}

type predictResponse struct {
	Filename      string                       `json:"filename"`
	Result        *models.ClassificationResult `json:"result,omitempty"`
	IsDuplicate   bool                         `json:"is_duplicate"`
	IsNewRecord   bool                         `json:"is_new_record"`
	PredictionID  string                       `json:"prediction_id,omitempty"`
	DuplicateInfo *models.DuplicateSummary     `json:"duplicate_info,omitempty"`
	Message       string                       `json:"message,omitempty"`
	Error         string                       `json:"error,omitempty"`
}

type batchPredictResponse struct {
	Results    []predictResponse `json:"results"`
	Total      int               `json:"total"`
	Success    int               `json:"success"`
	Duplicates int               `json:"duplicates"`
	NewRecords int               `json:"new_records"`
}

type deleteRequest struct {
	Ids []string `json:"ids"`
}

type deleteResponse struct {
	Success      bool   `json:"success"`
	DeletedCount int64  `json:"deleted_count"`
	Message      string `json:"message"`
}

func (ac *ApiController) writeJSON(w http.ResponseWriter, status int, v any) {
	gson, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

func (ac *ApiController) serveFromCacheOrCompute(w http.ResponseWriter, cacheKey string, compute func() (any, error)) {
	if data, ok := ac.cache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	result, err := compute()
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ac.cache.Set(cacheKey, gson)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func updateIfDuplicate(r *http.Request) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get("update_if_duplicate"))
	return err == nil && v
}

// processUpload runs the classify / duplicate-check / save pipeline for one
// uploaded file. A save failure does not fail the response: the classification
// result is still returned and the error only logged.
func (ac *ApiController) processUpload(r *http.Request, file multipart.File, header *multipart.FileHeader, update bool) predictResponse {
	imageBytes, err := io.ReadAll(file)
	if err != nil {
		return predictResponse{Filename: header.Filename, Error: fmt.Sprintf("cannot read upload: %s", err)}
	}

	result, err := ac.classifier.Predict(imageBytes)
	if err != nil {
		return predictResponse{Filename: header.Filename, Error: err.Error()}
	}

	duplicateInfo := ac.store.CheckDuplicate(r.Context(), imageBytes)
	isDuplicate := duplicateInfo != nil

	resp := predictResponse{
		Filename:      header.Filename,
		Result:        result,
		IsDuplicate:   isDuplicate,
		IsNewRecord:   true,
		DuplicateInfo: duplicateInfo,
	}

	meta := map[string]string{
		"content_type": header.Header.Get("Content-Type"),
		"tag":          result.Tag,
	}
	id, isNew, err := ac.store.SavePrediction(r.Context(), header.Filename, imageBytes, result.Label, result.Confidence, meta, update && isDuplicate)
	if err != nil {
		ac.logger.Errorf(providers.TypePost, "Error saving prediction for %s: %s", header.Filename, err)
	} else {
		resp.PredictionID = id
		resp.IsNewRecord = isNew
	}

	switch {
	case isDuplicate && update:
		resp.Message = "This image was already uploaded. Existing record was updated."
	case isDuplicate:
		resp.Message = "This image was already uploaded before. A new record was created."
	default:
		resp.Message = "New prediction saved successfully."
	}
	return resp
}

func (ac *ApiController) Predict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	defer file.Close()

	resp := ac.processUpload(r, file, header, updateIfDuplicate(r))
	if resp.Error != "" {
		ac.writeJSON(w, http.StatusBadRequest, resp)
		return
	}
	ac.writeJSON(w, http.StatusOK, resp)
}

func (ac *ApiController) BatchPredict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize*10)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	update := updateIfDuplicate(r)
	resp := batchPredictResponse{Results: make([]predictResponse, 0, len(files))}

	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			ac.logger.Errorf(providers.TypePost, "Error processing %s: %s", header.Filename, err)
			resp.Results = append(resp.Results, predictResponse{Filename: header.Filename, Error: err.Error()})
			continue
		}
		item := ac.processUpload(r, file, header, update)
		_ = file.Close()

		resp.Results = append(resp.Results, item)
		if item.Error == "" {
			resp.Success++
			if item.IsDuplicate {
				resp.Duplicates++
			}
			if item.IsNewRecord {
				resp.NewRecords++
			}
		}
	}
	resp.Total = len(resp.Results)

	ac.writeJSON(w, http.StatusOK, resp)
}

func (ac *ApiController) History(w http.ResponseWriter, r *http.Request) {
	limit := ac.conf.History.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	ac.serveFromCacheOrCompute(w, "history:"+strconv.Itoa(limit), func() (any, error) {
		history := ac.store.GetHistory(r.Context(), limit)
		return map[string]any{"history": history}, nil
	})
}

func (ac *ApiController) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	deleted, err := ac.store.DeletePredictions(r.Context(), req.Ids)
	if err != nil {
		ac.logger.Errorf(providers.TypeApp, "Error deleting predictions: %s", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// cached history/analytics/fruits responses are stale now
	if deleted > 0 {
		ac.cache.Clear()
	}

	ac.writeJSON(w, http.StatusOK, deleteResponse{
		Success:      true,
		DeletedCount: deleted,
		Message:      fmt.Sprintf("Deleted %d prediction(s)", deleted),
	})
}

func (ac *ApiController) Analytics(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, "analytics", func() (any, error) {
		return ac.analytics.Snapshot(r.Context()), nil
	})
}

func (ac *ApiController) Fruits(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, "fruits", func() (any, error) {
		return map[string]any{"fruits": ac.store.UniqueLabels(r.Context())}, nil
	})
}

func (ac *ApiController) Labels(w http.ResponseWriter, _ *http.Request) {
	ac.serveFromCacheOrCompute(w, "labels", func() (any, error) {
		return map[string]any{"labels": ac.classifier.Labels()}, nil
	})
}
