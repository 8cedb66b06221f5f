package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/swappy/picora/internal/booking"
	"github.com/swappy/picora/internal/calendar"
	"github.com/swappy/picora/internal/workbook"
	"go.uber.org/zap"
)

const (
	maxPhotoBytes     = 20 << 20
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	calendarMediaType = "text/calendar; charset=utf-8"
)

func appointmentID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_appointment_id"})
		return 0, false
	}
	return id, true
}

func (h *httpHandler) handleListAppointments(c *gin.Context) {
	includeDeleted, _ := strconv.ParseBool(c.Query("include_deleted"))

	var (
		appointments []booking.Appointment
		err          error
	)
	if includeDeleted {
		appointments, err = h.service.ListAppointmentsIncludingDeleted(c.Request.Context())
	} else {
		appointments, err = h.service.ListAppointments(c.Request.Context())
	}
	if err != nil {
		h.writeServiceError(c, err, "list_failed")
		return
	}

	appointments = booking.FilterAppointments(appointments, c.Query("q"))
	appointments = booking.SortAppointments(appointments, booking.ParseSortOrder(c.Query("sort")), h.clock())
	c.JSON(http.StatusOK, gin.H{"appointments": newAppointmentPayloads(appointments, h.location)})
}

func (h *httpHandler) handleGetAppointment(c *gin.Context) {
	id, ok := appointmentID(c)
	if !ok {
		return
	}
	appointment, err := h.service.GetAppointment(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err, "lookup_failed")
		return
	}
	c.JSON(http.StatusOK, newAppointmentPayload(appointment, h.location))
}

func (h *httpHandler) handleCreateAppointment(c *gin.Context) {
	var request appointmentRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || !request.hasSchedule() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	instant, err := request.instant(h.location)
	if err != nil {
		h.writeServiceError(c, err, "invalid_request")
		return
	}

	outcome, err := h.service.CreateAppointment(c.Request.Context(), booking.Appointment{
		CabinNumber:    request.CabinNumber,
		GuestName:      request.GuestName,
		Photographer:   request.Photographer,
		Occasion:       request.Occasion,
		DateTimeMillis: instant,
	})
	if err != nil {
		h.writeServiceError(c, err, "create_failed")
		return
	}
	if outcome.Duplicate {
		c.JSON(http.StatusConflict, gin.H{
			"error":       "duplicate_booking",
			"appointment": newAppointmentPayload(outcome.Appointment, h.location),
		})
		return
	}
	c.JSON(http.StatusCreated, newAppointmentPayload(outcome.Appointment, h.location))
}

func (h *httpHandler) handleUpdateAppointment(c *gin.Context) {
	id, ok := appointmentID(c)
	if !ok {
		return
	}
	var request appointmentRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	stored, err := h.service.GetAppointment(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err, "lookup_failed")
		return
	}
	updated := stored
	updated.CabinNumber = request.CabinNumber
	updated.GuestName = request.GuestName
	updated.Photographer = request.Photographer
	updated.Occasion = request.Occasion
	if request.hasSchedule() {
		instant, err := request.instant(h.location)
		if err != nil {
			h.writeServiceError(c, err, "invalid_request")
			return
		}
		updated.DateTimeMillis = instant
	}

	outcome, err := h.service.UpdateAppointment(c.Request.Context(), updated)
	if err != nil {
		h.writeServiceError(c, err, "update_failed")
		return
	}
	if outcome.Duplicate {
		c.JSON(http.StatusConflict, gin.H{
			"error":       "duplicate_booking",
			"appointment": newAppointmentPayload(outcome.Appointment, h.location),
		})
		return
	}
	c.JSON(http.StatusOK, newAppointmentPayload(outcome.Appointment, h.location))
}

func (h *httpHandler) handleDeleteAppointment(c *gin.Context) {
	id, ok := appointmentID(c)
	if !ok {
		return
	}
	if err := h.service.SoftDelete(c.Request.Context(), id); err != nil {
		h.writeServiceError(c, err, "delete_failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleClearAppointments(c *gin.Context) {
	if err := h.service.ClearAllAppointments(c.Request.Context()); err != nil {
		h.writeServiceError(c, err, "clear_failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleAppointmentICS(c *gin.Context) {
	id, ok := appointmentID(c)
	if !ok {
		return
	}
	appointment, err := h.service.GetAppointment(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err, "lookup_failed")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="appointment-%d.ics"`, appointment.ID))
	c.Data(http.StatusOK, calendarMediaType, []byte(calendar.BuildICS(appointment, h.clock())))
}

func (h *httpHandler) handleAppointmentQR(c *gin.Context) {
	id, ok := appointmentID(c)
	if !ok {
		return
	}
	size := calendar.DefaultQRSize
	if raw := c.Query("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 2048 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_size"})
			return
		}
		size = parsed
	}
	appointment, err := h.service.GetAppointment(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err, "lookup_failed")
		return
	}
	png, err := calendar.QRCode(appointment, h.clock(), size)
	if err != nil {
		h.writeServiceError(c, err, "qr_failed")
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *httpHandler) handleUploadPhoto(c *gin.Context) {
	id, ok := appointmentID(c)
	if !ok {
		return
	}
	if _, err := h.service.GetAppointment(c.Request.Context(), id); err != nil {
		h.writeServiceError(c, err, "lookup_failed")
		return
	}

	header, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_photo"})
		return
	}
	if header.Size > maxPhotoBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "photo_too_large"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_photo"})
		return
	}
	defer file.Close()

	uri, err := h.photos.Save(c.Request.Context(), id, file)
	if err != nil {
		h.writeServiceError(c, err, "photo_store_failed")
		return
	}
	if err := h.service.AttachPhoto(c.Request.Context(), id, uri); err != nil {
		h.writeServiceError(c, err, "photo_attach_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"photo_uri": uri})
}

func (h *httpHandler) handleDownloadPhoto(c *gin.Context) {
	id, ok := appointmentID(c)
	if !ok {
		return
	}
	appointment, err := h.service.GetAppointment(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err, "lookup_failed")
		return
	}
	if appointment.PhotoURI == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no_photo"})
		return
	}
	file, err := h.photos.Open(*appointment.PhotoURI)
	if err != nil {
		h.logger.Warn("stored photo unavailable", zap.Int64("appointment_id", id), zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"error": "no_photo"})
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		h.writeServiceError(c, err, "photo_read_failed")
		return
	}
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), file)
}

func (h *httpHandler) handleExportAppointments(c *gin.Context) {
	appointments, err := h.service.ListAppointmentsIncludingDeleted(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, err, "export_failed")
		return
	}
	var buffer bytes.Buffer
	if err := workbook.WriteAppointments(&buffer, appointments, h.location); err != nil {
		h.writeServiceError(c, err, "export_failed")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="appointments.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buffer.Bytes())
}
