package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	mw "github.com/handscan/handscan/internal/api/middleware"
	"github.com/handscan/handscan/internal/correction"
	"github.com/handscan/handscan/internal/datastore/entities"
)

type identifyRequest struct {
	InstallID string `json:"install_id"`
	Label     string `json:"label"`
}

type presignRequest struct {
	ContentType string                 `json:"content_type"`
	Purpose     entities.UploadPurpose `json:"purpose"`
}

type triggerRequest struct {
	AssetID uuid.UUID           `json:"asset_id"`
	Source  entities.HandSource `json:"source"`
}

type tileRequest struct {
	TileCode  string `json:"tile_code"`
	SortOrder int    `json:"sort_order"`
}

type correctionRequest struct {
	HandID      uuid.UUID     `json:"hand_id"`
	DetectionID *uuid.UUID    `json:"detection_id"`
	Tiles       []tileRequest `json:"tiles"`
}

// cachedDetection is a terminal detection response and the client that
// may read it.
type cachedDetection struct {
	owner    string
	response DetectionResponse
}

func bindBody(c echo.Context, v any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, v); err != nil {
		return invalidRequest("invalid request body")
	}
	return nil
}

func uuidParam(c echo.Context, name string) (uuid.UUID, error) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, invalidRequest("invalid %s %q", name, raw)
	}
	return id, nil
}

// identifyClient registers the install or records a visit. The install id
// comes from the body, falling back to the header.
func (s *Server) identifyClient(c echo.Context) error {
	var req identifyRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	installID := strings.TrimSpace(req.InstallID)
	if installID == "" {
		installID = strings.TrimSpace(c.Request().Header.Get(mw.HeaderInstallID))
	}

	client, created, err := s.identity.Identify(c.Request().Context(), installID, strings.TrimSpace(req.Label))
	if err != nil {
		return err
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, newClientResponse(client))
}

func (s *Server) getClient(c echo.Context) error {
	client, err := s.identity.Get(c.Request().Context(), mw.InstallID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newClientResponse(client))
}

func (s *Server) deleteClient(c echo.Context) error {
	if err := s.identity.Delete(c.Request().Context(), mw.InstallID(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) presignUpload(c echo.Context) error {
	var req presignRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	installID := mw.InstallID(c)
	presigned, err := s.uploads.Presign(ctx, installID, req.ContentType, req.Purpose)
	if err != nil {
		return err
	}
	asset, err := s.uploads.GetAsset(ctx, installID, presigned.AssetID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, newPresignResponse(asset, presigned))
}

func (s *Server) completeUpload(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	asset, err := s.uploads.Complete(c.Request().Context(), mw.InstallID(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newAssetResponse(asset))
}

func (s *Server) getAsset(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	asset, err := s.uploads.GetAsset(c.Request().Context(), mw.InstallID(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newAssetResponse(asset))
}

// triggerDetection answers 201 when a run was created and 200 when a live
// run was reused. A failed dispatch is reported as an error; the run
// itself stays pending and is retried by the worker.
func (s *Server) triggerDetection(c echo.Context) error {
	var req triggerRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	if req.AssetID == uuid.Nil {
		return invalidRequest("asset_id is required")
	}

	detection, created, err := s.detections.TriggerAsset(c.Request().Context(), req.AssetID, mw.InstallID(c), req.Source)
	if err != nil {
		return err
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, TriggerResponse{
		HandID:          detection.HandID,
		AssetRefID:      detection.AssetRefID,
		HandDetectionID: detection.ID,
		Status:          detection.Status,
	})
}

func (s *Server) getDetection(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	installID := mw.InstallID(c)

	if v, ok := s.detectionCache.Get(id.String()); ok {
		if entry := v.(cachedDetection); entry.owner == installID {
			return c.JSON(http.StatusOK, entry.response)
		}
	}

	detection, err := s.detections.Get(c.Request().Context(), installID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.detectionResponse(detection, installID))
}

func (s *Server) pollDetection(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	installID := mw.InstallID(c)

	detection, err := s.detections.PollOwned(c.Request().Context(), installID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.detectionResponse(detection, installID))
}

// detectionResponse builds the response and caches it once the run is
// terminal.
func (s *Server) detectionResponse(detection *entities.HandDetection, installID string) DetectionResponse {
	resp := newDetectionResponse(detection)
	if detection.Status == entities.DetectionSucceeded || detection.Status == entities.DetectionFailed {
		s.detectionCache.SetDefault(detection.ID.String(), cachedDetection{owner: installID, response: resp})
	}
	return resp
}

func (s *Server) createCorrection(c echo.Context) error {
	var req correctionRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	if req.HandID == uuid.Nil {
		return invalidRequest("hand_id is required")
	}

	tiles := make([]correction.TileInput, 0, len(req.Tiles))
	for _, t := range req.Tiles {
		tiles = append(tiles, correction.TileInput{Code: t.TileCode, SortOrder: t.SortOrder})
	}

	created, err := s.corrections.Submit(c.Request().Context(), mw.InstallID(c), correction.CreateRequest{
		HandID:      req.HandID,
		DetectionID: req.DetectionID,
		Tiles:       tiles,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, newCorrectionResponse(created))
}

func (s *Server) listCorrections(c echo.Context) error {
	var handID *uuid.UUID
	if raw := c.QueryParam("hand_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return invalidRequest("invalid hand_id %q", raw)
		}
		handID = &id
	}

	corrections, err := s.corrections.List(c.Request().Context(), mw.InstallID(c), handID)
	if err != nil {
		return err
	}

	resp := make([]CorrectionResponse, 0, len(corrections))
	for i := range corrections {
		resp = append(resp, newCorrectionResponse(&corrections[i]))
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) getCorrection(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	found, err := s.corrections.Get(c.Request().Context(), mw.InstallID(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newCorrectionResponse(found))
}
