package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	addr       = flag.String("addr", "", "http service address (overrides config)")
	configPath = flag.String("config", "config.yaml", "path to YAML config file")
)

var (
	globalTable    *TableStore
	globalUsers    *UserManager
	globalAudit    *AuditManager
	globalNotifier *NotificationManager
)

func main() {
	flag.Parse()

	cfg := loadConfig(*configPath)
	if *addr != "" {
		cfg.Addr = *addr
	}

	globalTable = NewTableStore(cfg.DataDir)
	globalUsers = NewUserManager(cfg.DataDir)
	globalAudit = NewAuditManager(cfg.DataDir)
	globalNotifier = NewNotificationManager(cfg.DataDir)

	globalTable.Load()
	globalUsers.Load()
	globalAudit.Load()
	globalNotifier.Load()

	// Initialize Hub
	hub := newHub(globalTable)
	globalTable.SetBroadcaster(hub)
	go hub.run()

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, globalUsers, w, r)
	})

	http.HandleFunc("/api/register", func(w http.ResponseWriter, r *http.Request) {
		if !cors(w, r, "POST, OPTIONS") {
			return
		}
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Username string `json:"username"`
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Username == "" || req.Password == "" {
			http.Error(w, "Username and password required", http.StatusBadRequest)
			return
		}

		if err := globalUsers.Register(req.Username, req.Email, req.Password); err != nil {
			http.Error(w, err.Error(), http.StatusConflict) // User exists
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	http.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		if !cors(w, r, "POST, OPTIONS") {
			return
		}
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		token, err := globalUsers.Login(req.Username, req.Password)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		email := ""
		if u, ok := globalUsers.GetUser(req.Username); ok {
			email = u.Email
		}
		writeJSON(w, map[string]string{
			"token":    token,
			"username": req.Username,
			"email":    email,
		})
	})

	http.HandleFunc("/api/logout", func(w http.ResponseWriter, r *http.Request) {
		if !cors(w, r, "POST, OPTIONS") {
			return
		}
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token := r.Header.Get("Authorization"); token != "" {
			globalUsers.Logout(token)
		}
		writeJSON(w, map[string]string{"message": "Logged out successfully"})
	})

	http.HandleFunc("/api/validate", func(w http.ResponseWriter, r *http.Request) {
		if !cors(w, r, "GET, OPTIONS") {
			return
		}
		username, ok := requireAuth(w, r)
		if !ok {
			return
		}
		writeJSON(w, map[string]string{"username": username, "valid": "true"})
	})

	http.HandleFunc("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		if !cors(w, r, "POST, OPTIONS") {
			return
		}
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		username, ok := requireAuth(w, r)
		if !ok {
			return
		}

		// A second upload while one is in flight is rejected outright.
		if !globalTable.BeginLoad() {
			http.Error(w, "Upload already in progress", http.StatusConflict)
			return
		}
		defer globalTable.EndLoad()

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file field required", http.StatusBadRequest)
			return
		}
		defer file.Close()

		// Type and size are validated before the contents are read.
		ext := filepath.Ext(header.Filename)
		if err := validateUpload(ext, header.Size); err != nil {
			reportLoadError(w, err)
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		grid, sheetName, err := LoadWorkbook(data, header.Filename)
		if err != nil {
			reportLoadError(w, err)
			return
		}

		globalTable.SetGrid(grid, header.Filename)
		dataRows := 0
		if len(grid) > 1 {
			dataRows = len(grid) - 1
		}
		globalAudit.Append(username, "UPLOAD", fmt.Sprintf("Loaded %d data rows from %s (sheet %s)", dataRows, header.Filename, sheetName))
		globalNotifier.Success("File uploaded successfully",
			fmt.Sprintf("%d data rows loaded from %s (Sheet: %s)", dataRows, header.Filename, sheetName))

		writeJSON(w, map[string]any{
			"fileName": header.Filename,
			"sheet":    sheetName,
			"dataRows": dataRows,
		})
	})

	http.HandleFunc("/api/table", func(w http.ResponseWriter, r *http.Request) {
		if !cors(w, r, "GET, OPTIONS") {
			return
		}
		if _, ok := requireAuth(w, r); !ok {
			return
		}
		writeJSON(w, map[string]any{
			"rows":                 globalTable.FilteredRows(),
			"headers":              globalTable.Headers(),
			"fileName":             globalTable.FileName(),
			"searchTerm":           globalTable.SearchTerm(),
			"columnFilters":        globalTable.ColumnFilters(),
			"uniqueValuesByColumn": globalTable.UniqueValuesByColumn(),
			"isEditMode":           globalTable.IsEditMode(),
			"hasUnsavedChanges":    globalTable.HasUnsavedChanges(),
			"isLoading":            globalTable.IsLoading(),
			"updatedAt":            globalTable.UpdatedAt(),
		})
	})

	http.HandleFunc("/api/search", func(w http.ResponseWriter, r *http.Request) {
		if !cors(w, r, "POST, OPTIONS") {
			return
		}
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if _, ok := requireAuth(w, r); !ok {
			return
		}
		var req struct {
			Term string `json:"term"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		globalTable.SetSearchTerm(req.Term)
		writeJSON(w, map[string]int{"visibleRows": len(globalTable.VisibleDataRows())})
	})

	http.HandleFunc("/api/filters", func(w http.ResponseWriter, r *http.Request) {
		if !cors(w, r, "POST, OPTIONS") {
			return
		}
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if _, ok := requireAuth(w, r); !ok {
			return
		}
		var req struct {
			Action string `json:"action"` // "toggle" or "clear"
			Column int    `json:"column"`
			Value  string `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch req.Action {
		case "toggle":
			globalTable.ToggleColumnFilter(req.Column, req.Value)
		case "clear":
			globalTable.ClearColumnFilter(req.Column)
		default:
			http.Error(w, "unknown filter action", http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{
			"columnFilters": globalTable.ColumnFilters(),
			"visibleRows":   len(globalTable.VisibleDataRows()),
		})
	})

	http.HandleFunc("/api/edit", func(w http.ResponseWriter, r *http.Request) {
		if !cors(w, r, "POST, OPTIONS") {
			return
		}
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		username, ok := requireAuth(w, r)
		if !ok {
			return
		}
		var req struct {
			Action     string `json:"action"`
			Row        int    `json:"row"`
			Col        int    `json:"col"`
			Value      Value  `json:"value"`
			AfterIndex *int   `json:"afterIndex"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		switch req.Action {
		case "enter":
			globalTable.EnterEditMode()
		case "cell":
			globalTable.UpdateCell(req.Row, req.Col, req.Value)
		case "addRow":
			after := -1
			if req.AfterIndex != nil {
				after = *req.AfterIndex
			}
			globalTable.AddRow(after)
		case "deleteRow":
			globalTable.DeleteRow(req.Row)
		case "save":
			wasDirty := globalTable.HasUnsavedChanges()
			globalTable.SaveChanges()
			if wasDirty {
				globalAudit.Append(username, "SAVE_CHANGES", "Committed edits to "+globalTable.FileName())
				globalNotifier.Success("Changes saved", "Your modifications have been saved.")
			}
		case "cancel":
			globalTable.CancelChanges()
		default:
			http.Error(w, "unknown edit action", http.StatusBadRequest)
			return
		}

		writeJSON(w, map[string]any{
			"isEditMode":        globalTable.IsEditMode(),
			"hasUnsavedChanges": globalTable.HasUnsavedChanges(),
		})
	})

	http.HandleFunc("/api/aggregate", func(w http.ResponseWriter, r *http.Request) {
		if !cors(w, r, "GET, OPTIONS") {
			return
		}
		if _, ok := requireAuth(w, r); !ok {
			return
		}
		categoryCol := queryInt(r, "category", 0)
		numericCol := queryInt(r, "numeric", 1)
		mode := AggregationMode(r.URL.Query().Get("mode"))
		if mode != AggSum {
			mode = AggCount
		}
		series := Aggregate(globalTable.VisibleDataRows(), categoryCol, numericCol, mode)
		writeJSON(w, map[string]any{"mode": mode, "series": series})
	})

	http.HandleFunc("/api/export", func(w http.ResponseWriter, r *http.Request) {
		if !cors(w, r, "GET, OPTIONS") {
			return
		}
		username, ok := requireAuth(w, r)
		if !ok {
			return
		}
		rows := globalTable.Rows()
		if len(rows) == 0 {
			globalNotifier.Error("No data to export", "Please upload a file first.")
			http.Error(w, "no data to export", http.StatusConflict)
			return
		}
		format := r.URL.Query().Get("format")
		if format != "csv" {
			format = "xlsx"
		}

		name, data, err := ExportGrid(rows, globalTable.VisibleDataRows(), globalTable.FileName(), format)
		if err != nil {
			globalNotifier.Error("Export failed", err.Error())
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		globalAudit.Append(username, "EXPORT", "Exported "+name)
		globalNotifier.Success("File exported", "Data saved as "+name)

		if format == "csv" {
			w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		} else {
			w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		}
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
		w.Write(data)
	})

	http.HandleFunc("/api/clear", func(w http.ResponseWriter, r *http.Request) {
		if !cors(w, r, "POST, OPTIONS") {
			return
		}
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		username, ok := requireAuth(w, r)
		if !ok {
			return
		}
		globalTable.Clear()
		globalAudit.Append(username, "CLEAR", "Cleared table data")
		globalNotifier.Success("Data cleared", "Ready for a new file upload.")
		writeJSON(w, map[string]string{"message": "Data cleared"})
	})

	http.HandleFunc("/api/notifications", func(w http.ResponseWriter, r *http.Request) {
		if !cors(w, r, "GET, OPTIONS") {
			return
		}
		if _, ok := requireAuth(w, r); !ok {
			return
		}
		writeJSON(w, globalNotifier.History())
	})

	http.HandleFunc("/api/audit", func(w http.ResponseWriter, r *http.Request) {
		if !cors(w, r, "GET, OPTIONS") {
			return
		}
		if _, ok := requireAuth(w, r); !ok {
			return
		}
		writeJSON(w, globalAudit.List())
	})

	// Simple health check
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	log.Printf("Server started on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, nil); err != nil {
		log.Fatal("ListenAndServe: ", err)
	}
}

// cors writes the CORS headers and handles the preflight request.
// It returns false when the request was a completed OPTIONS preflight.
func cors(w http.ResponseWriter, r *http.Request, methods string) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return false
	}
	return true
}

func requireAuth(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := r.Header.Get("Authorization")
	if token == "" {
		http.Error(w, "No token provided", http.StatusUnauthorized)
		return "", false
	}
	username, err := globalUsers.ValidateToken(token)
	if err != nil {
		http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
		return "", false
	}
	return username, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, fallback int) int {
	if s := r.URL.Query().Get(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// validateUpload applies the pre-parse checks from the declared filename
// and size, before any file contents are read.
func validateUpload(ext string, size int64) error {
	if !validExtensions[strings.ToLower(ext)] {
		return fmt.Errorf("%w: %q", ErrInvalidFileType, ext)
	}
	if size > maxFileSize {
		return fmt.Errorf("%w: %.1fMB exceeds the 50MB limit", ErrFileTooLarge, float64(size)/1024/1024)
	}
	if size < minFileSize {
		return fmt.Errorf("%w: file looks empty or corrupted", ErrFileTooSmall)
	}
	return nil
}

func reportLoadError(w http.ResponseWriter, err error) {
	var status int
	var title string
	switch {
	case errors.Is(err, ErrInvalidFileType):
		status, title = http.StatusBadRequest, "Invalid file type"
	case errors.Is(err, ErrFileTooLarge):
		status, title = http.StatusRequestEntityTooLarge, "File too large"
	case errors.Is(err, ErrFileTooSmall):
		status, title = http.StatusBadRequest, "File too small"
	case errors.Is(err, ErrNoSheetsFound):
		status, title = http.StatusUnprocessableEntity, "No sheets found"
	default:
		status, title = http.StatusUnprocessableEntity, "Failed to read file"
	}
	globalNotifier.Error(title, err.Error())
	http.Error(w, err.Error(), status)
}
