package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/robotsunny/private-app-store/internal/auth"
	"github.com/robotsunny/private-app-store/internal/models"
	"github.com/robotsunny/private-app-store/internal/storage"
	"github.com/robotsunny/private-app-store/internal/store"
	"github.com/robotsunny/private-app-store/internal/upload"
)

var semverRe = regexp.MustCompile(`^\d+\.\d+\.\d+(?:[-+][0-9A-Za-z.+-]+)?$`)

var platformExt = map[string]string{
	models.PlatformAndroid: ".apk",
	models.PlatformIOS:     ".ipa",
}

var platformMinOS = map[string]string{
	models.PlatformAndroid: "8.0",
	models.PlatformIOS:     "14.0",
}

type uploadMeta struct {
	Name         string
	Description  string
	Version      string
	Platform     string
	BundleID     string
	MinOSVersion string
}

// validateMeta checks the declared fields against the original filename,
// before any file content is inspected. It returns an empty string when the
// metadata is acceptable.
func validateMeta(m *uploadMeta, originalName string) string {
	if m.Name == "" || m.Platform == "" || m.BundleID == "" {
		return "Name, platform, and bundle ID are required"
	}
	if _, ok := platformExt[m.Platform]; !ok {
		return `Platform must be "ios" or "android"`
	}
	if m.Version == "" {
		m.Version = "1.0.0"
	}
	if !semverRe.MatchString(m.Version) {
		return "Version must be a semantic version like 1.0.0"
	}
	want := platformExt[m.Platform]
	if strings.ToLower(filepath.Ext(originalName)) != want {
		return fmt.Sprintf("File extension doesn't match platform. %s requires %s files",
			strings.ToUpper(m.Platform), want)
	}
	if m.MinOSVersion == "" {
		m.MinOSVersion = platformMinOS[m.Platform]
	}
	return ""
}

// Upload is the intake pipeline for one attempt: guard (wired in the
// router) -> metadata validation -> spool -> validator chain -> promote ->
// persist record. Any failure after bytes were spooled discards the temp
// file; a failure after promotion removes the stored blob. No partial
// artifact survives any exit path.
func Upload(apps store.AppStore, files *storage.FileStore, validator *upload.Validator, maxBytes int64, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.FromContext(r.Context())
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

		file, header, err := r.FormFile("appFile")
		if err != nil {
			respondError(w, http.StatusBadRequest, "No file uploaded")
			return
		}
		defer file.Close()

		meta := uploadMeta{
			Name:         strings.TrimSpace(r.FormValue("name")),
			Description:  r.FormValue("description"),
			Version:      strings.TrimSpace(r.FormValue("version")),
			Platform:     strings.ToLower(strings.TrimSpace(r.FormValue("platform"))),
			BundleID:     strings.TrimSpace(r.FormValue("bundleId")),
			MinOSVersion: strings.TrimSpace(r.FormValue("minOsVersion")),
		}
		if msg := validateMeta(&meta, header.Filename); msg != "" {
			respondError(w, http.StatusBadRequest, msg)
			return
		}

		tmpPath, size, err := files.SpoolTemp(file)
		if err != nil {
			lg.Errorw("upload spool failed", "file", header.Filename, "error", err)
			respondError(w, http.StatusInternalServerError, "Error uploading file")
			return
		}

		artifact, err := validator.Validate(upload.Attempt{
			Path:         tmpPath,
			OriginalName: header.Filename,
			Size:         size,
			Platform:     meta.Platform,
		})
		if err != nil {
			// the validator has already deleted the temp file
			if rej, ok := upload.IsRejection(err); ok {
				respondRejection(w, rej)
				return
			}
			lg.Errorw("upload validation fault", "file", header.Filename, "error", err)
			respondError(w, http.StatusInternalServerError, "Could not process the uploaded file")
			return
		}

		storedName := storage.StoredName(header.Filename)
		if err := files.Promote(tmpPath, storedName); err != nil {
			files.Discard(tmpPath)
			lg.Errorw("upload promote failed", "file", header.Filename, "error", err)
			respondError(w, http.StatusInternalServerError, "Error uploading file")
			return
		}

		app := models.App{
			Name:             meta.Name,
			Description:      meta.Description,
			Version:          meta.Version,
			Platform:         meta.Platform,
			BundleID:         meta.BundleID,
			DeveloperID:      claims.UserID,
			FileName:         storedName,
			OriginalFileName: header.Filename,
			FileSizeMB:       upload.SizeMB(artifact.Size),
			Checksum:         artifact.Checksum,
			MinOSVersion:     meta.MinOSVersion,
			IsActive:         true,
		}
		if err := apps.CreateApp(&app); err != nil {
			_ = files.Remove(storedName)
			lg.Errorw("upload persist failed", "file", header.Filename, "error", err)
			respondError(w, http.StatusInternalServerError, "Error uploading file")
			return
		}

		lg.Infow("app uploaded",
			"id", app.ID, "name", app.Name, "developer", claims.UserID,
			"size_mb", app.FileSizeMB, "checksum", app.Checksum[:16]+"...")
		respondJSON(w, http.StatusCreated, map[string]any{
			"success": true,
			"message": "App uploaded successfully",
			"data":    app,
		})
	}
}

func respondRejection(w http.ResponseWriter, rej *upload.Rejection) {
	body := map[string]any{
		"success": false,
		"error":   string(rej.Kind),
		"message": rej.Message,
	}
	switch rej.Kind {
	case upload.FileTooSmall, upload.FileTooLarge:
		body["currentSize"] = fmt.Sprintf("%.2f MB", float64(rej.SizeBytes)/(1<<20))
	case upload.InvalidFormat:
		if rej.Detected != "" {
			body["detected"] = rej.Detected
		}
	case upload.SecurityScanFailed:
		body["threats"] = rej.Threats
		body["action"] = "File has been deleted for security reasons"
	}
	respondJSON(w, http.StatusBadRequest, body)
}

// Download streams a stored artifact. Public by design: the catalog is
// admin-curated on the way in, open on the way out.
func Download(apps store.AppStore, files *storage.FileStore, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "appId"), 10, 64)
		if err != nil {
			respondError(w, http.StatusNotFound, "App not found")
			return
		}
		app, ok, err := apps.AppByID(uint(id))
		if err != nil {
			lg.Errorw("download lookup failed", "id", id, "error", err)
			respondError(w, http.StatusInternalServerError, "Error downloading file")
			return
		}
		if !ok || !app.IsActive {
			respondError(w, http.StatusNotFound, "App not found")
			return
		}

		f, err := files.Open(app.FileName)
		if err != nil {
			// record exists but the blob is gone: inconsistency worth noise
			lg.Errorw("stored file missing for app record",
				"id", app.ID, "fileName", app.FileName, "error", err)
			respondError(w, http.StatusNotFound, "File not found")
			return
		}
		defer f.Close()

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", app.OriginalFileName))
		w.Header().Set("Content-Type", "application/octet-stream")
		if info, err := f.Stat(); err == nil {
			w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
		}
		if _, err := io.Copy(w, f); err != nil {
			lg.Warnw("download stream interrupted", "id", app.ID, "error", err)
		}
	}
}

// Stats summarizes the caller's own uploads.
func Stats(apps store.AppStore, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.FromContext(r.Context())
		userApps, err := apps.AppsByDeveloper(claims.UserID)
		if err != nil {
			lg.Errorw("stats query failed", "user", claims.UserID, "error", err)
			respondError(w, http.StatusInternalServerError, "Error fetching upload statistics")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"totalApps": len(userApps),
				"totalSize": lo.SumBy(userApps, func(a models.App) float64 { return a.FileSizeMB }),
				"iosApps": lo.CountBy(userApps, func(a models.App) bool {
					return a.Platform == models.PlatformIOS
				}),
				"androidApps": lo.CountBy(userApps, func(a models.App) bool {
					return a.Platform == models.PlatformAndroid
				}),
			},
		})
	}
}
