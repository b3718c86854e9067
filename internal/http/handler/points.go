package handler

import (
	"github.com/gofiber/fiber/v2"

	"paustdb/internal/model"
	"paustdb/internal/service"
)

type putRequest struct {
	Points []model.Point `json:"points"`
}

type putResponse struct {
	IDs   []model.RowKey `json:"ids"`
	Count int            `json:"count"`
}

type fetchRequest struct {
	IDs [][]byte `json:"ids"`
}

type metaResponse struct {
	Data []model.Meta `json:"data"`
}

type recordResponse struct {
	Data []model.Record `json:"data"`
}

// PutPoints godoc
// @Summary Write points
// @Description Stores a batch of points atomically. Ids are returned in input order.
// @Tags points
// @Accept json
// @Produce json
// @Param body body putRequest true "points"
// @Success 201 {object} putResponse
// @Failure 400 {object} errorPayload
// @Router /v1/points [post]
func PutPoints(svc service.PointService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req putRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		ids, err := svc.Put(c.UserContext(), req.Points)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(putResponse{IDs: ids, Count: len(ids)})
	}
}

// QueryPoints godoc
// @Summary Query point metadata
// @Description Returns metadata of points with start <= timestamp < end, ordered by row key.
// @Tags points
// @Accept json
// @Produce json
// @Param body body model.RangeQuery true "range"
// @Success 200 {object} metaResponse
// @Failure 400 {object} errorPayload
// @Router /v1/query [post]
func QueryPoints(svc service.PointService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var q model.RangeQuery
		if err := c.BodyParser(&q); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		metas, err := svc.Query(c.UserContext(), q)
		if err != nil {
			return writeServiceError(c, err)
		}
		if metas == nil {
			metas = []model.Meta{}
		}
		return c.JSON(metaResponse{Data: metas})
	}
}

// FetchPoints godoc
// @Summary Fetch points by id
// @Description Returns full records in request order. Unknown ids are omitted.
// @Tags points
// @Accept json
// @Produce json
// @Param body body fetchRequest true "base64 row keys"
// @Success 200 {object} recordResponse
// @Failure 400 {object} errorPayload
// @Router /v1/fetch [post]
func FetchPoints(svc service.PointService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req fetchRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		recs, err := svc.Fetch(c.UserContext(), req.IDs)
		if err != nil {
			return writeServiceError(c, err)
		}
		if recs == nil {
			recs = []model.Record{}
		}
		return c.JSON(recordResponse{Data: recs})
	}
}

// CreateArchive godoc
// @Summary Archive a range
// @Description Exports matching records as NDJSON to object storage and returns a presigned URL.
// @Tags archives
// @Accept json
// @Produce json
// @Param body body model.RangeQuery true "range"
// @Success 201 {object} service.ArchiveResult
// @Failure 400 {object} errorPayload
// @Failure 503 {object} errorPayload
// @Router /v1/archives [post]
func CreateArchive(svc service.PointService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var q model.RangeQuery
		if err := c.BodyParser(&q); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		res, err := svc.Archive(c.UserContext(), q)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}
