package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/swappy/picora/internal/booking"
	"go.uber.org/zap"
)

const maxWorkbookBytes = 32 << 20

func (h *httpHandler) handleBoard(c *gin.Context) {
	days, err := h.service.Board(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, err, "board_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": newBoardPayload(days, h.location)})
}

func (h *httpHandler) handleListTimeSlots(c *gin.Context) {
	slots, err := h.service.ListTimeSlots(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, err, "list_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"time_slots": newTimeSlotPayloads(slots)})
}

type timeSlotsRequestPayload struct {
	Date  string            `json:"date"`
	Time  string            `json:"time"`
	Slots []timeSlotPayload `json:"slots"`
}

func (h *httpHandler) handleAddTimeSlots(c *gin.Context) {
	var request timeSlotsRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	var (
		merged []booking.TimeSlot
		err    error
	)
	if len(request.Slots) > 0 {
		merged, err = h.service.ReplaceTimeSlots(c.Request.Context(), timeSlotsFromPayloads(request.Slots))
	} else {
		merged, err = h.service.AddTimeSlot(c.Request.Context(), request.Date, request.Time)
	}
	if err != nil {
		h.writeServiceError(c, err, "time_slots_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"time_slots": newTimeSlotPayloads(merged)})
}

type generateSlotsRequestPayload struct {
	Date        string `json:"date"`
	Start       string `json:"start"`
	End         string `json:"end"`
	StepMinutes int    `json:"step_minutes"`
}

func (h *httpHandler) handleGenerateTimeSlots(c *gin.Context) {
	var request generateSlotsRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	generated, err := booking.GenerateTimeSlots(request.Date, request.Start, request.End, time.Duration(request.StepMinutes)*time.Minute)
	if err != nil {
		h.writeServiceError(c, err, "invalid_request")
		return
	}
	merged, err := h.service.ReplaceTimeSlots(c.Request.Context(), generated)
	if err != nil {
		h.writeServiceError(c, err, "time_slots_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"generated": len(generated), "time_slots": newTimeSlotPayloads(merged)})
}

func (h *httpHandler) handleListGuests(c *gin.Context) {
	guests, err := h.service.ListGuests(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, err, "list_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"guests": newGuestPayloads(guests)})
}

func (h *httpHandler) handleListPhotographers(c *gin.Context) {
	photographers, err := h.service.ListPhotographers(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, err, "list_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"photographers": newPhotographerPayloads(photographers)})
}

func (h *httpHandler) handleListOccasions(c *gin.Context) {
	occasions, err := h.service.ListOccasions(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, err, "list_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"occasions": newOccasionPayloads(occasions)})
}

type importResponsePayload struct {
	Guests                int  `json:"guests"`
	Photographers         int  `json:"photographers"`
	Occasions             int  `json:"occasions"`
	TimeSlots             int  `json:"time_slots"`
	GuestsSkipped         int  `json:"guests_skipped"`
	TimeSlotsSkipped      int  `json:"time_slots_skipped"`
	GuestsReplaced        bool `json:"guests_replaced"`
	PhotographersReplaced bool `json:"photographers_replaced"`
	OccasionsReplaced     bool `json:"occasions_replaced"`
	TimeSlotsMerged       bool `json:"time_slots_merged"`
	TimeSlotCount         int  `json:"time_slot_count"`
}

func (h *httpHandler) handleImport(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_file"})
		return
	}
	if header.Size > maxWorkbookBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file_too_large"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_workbook"})
		return
	}
	defer file.Close()

	result, err := h.importer.Read(c.Request.Context(), file)
	if err != nil {
		h.logger.Warn("workbook import rejected", zap.String("file", header.Filename), zap.Error(err))
		h.writeServiceError(c, err, "import_failed")
		return
	}
	summary, err := h.service.ApplyImport(c.Request.Context(), result.Batch)
	if err != nil {
		h.writeServiceError(c, err, "import_failed")
		return
	}

	c.JSON(http.StatusOK, importResponsePayload{
		Guests:                len(result.Batch.Guests),
		Photographers:         len(result.Batch.Photographers),
		Occasions:             len(result.Batch.Occasions),
		TimeSlots:             len(result.Batch.TimeSlots),
		GuestsSkipped:         result.Skipped.Guests,
		TimeSlotsSkipped:      result.Skipped.TimeSlots,
		GuestsReplaced:        summary.GuestsReplaced,
		PhotographersReplaced: summary.PhotographersReplaced,
		OccasionsReplaced:     summary.OccasionsReplaced,
		TimeSlotsMerged:       summary.TimeSlotsMerged,
		TimeSlotCount:         summary.TimeSlotCount,
	})
}

type portNameRequestPayload struct {
	Name string `json:"name"`
}

func (h *httpHandler) handleGetPortName(c *gin.Context) {
	name, err := h.service.PortNames().Get(c.Request.Context(), c.Param("date"))
	if err != nil {
		h.writeServiceError(c, err, "port_name_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": c.Param("date"), "name": name})
}

func (h *httpHandler) handleSavePortName(c *gin.Context) {
	var request portNameRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	name, err := h.service.PortNames().Save(c.Request.Context(), c.Param("date"), request.Name)
	if err != nil {
		h.writeServiceError(c, err, "port_name_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": c.Param("date"), "name": name})
}

func (h *httpHandler) handleClearPortName(c *gin.Context) {
	if err := h.service.PortNames().Clear(c.Request.Context(), c.Param("date")); err != nil {
		h.writeServiceError(c, err, "port_name_failed")
		return
	}
	c.Status(http.StatusNoContent)
}

type wipeRequestPayload struct {
	Confirm string `json:"confirm"`
}

// handleWipe requires the literal confirmation "WIPE" in the body.
func (h *httpHandler) handleWipe(c *gin.Context) {
	var request wipeRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Confirm) != "WIPE" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "confirmation_required"})
		return
	}
	if err := h.service.WipeAll(c.Request.Context()); err != nil {
		h.writeServiceError(c, err, "wipe_failed")
		return
	}
	c.Status(http.StatusNoContent)
}
