package controllers

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/princinho/escolaportal/dto"
	"github.com/princinho/escolaportal/services"
	"github.com/princinho/escolaportal/storage"
	"github.com/princinho/escolaportal/utils"
)

// GET /notices?limit=
func GetNotices(svc *services.NoticeService, limits Limits) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := limits.clamp(utils.ParseIntDefault(c.Query("limit"), limits.Default))
		list, err := svc.List(c.Request.Context(), limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": list, "total": len(list)})
	}
}

// POST /notices (multipart: title, body, files[])
func CreateNotice(svc *services.NoticeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.NoticeDTO
		if err := c.ShouldBind(&body); err != nil {
			respondBindError(c, err)
			return
		}
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
			return
		}
		uploads, closers, err := openUploads(form.File["files"])
		defer func() {
			for _, f := range closers {
				f.Close()
			}
		}()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		n, err := svc.Create(c.Request.Context(), actor(c), services.NoticeInput{
			Title: body.Title,
			Body:  body.Body,
			Files: uploads,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, n)
	}
}

func openUploads(files []*multipart.FileHeader) ([]storage.Upload, []io.Closer, error) {
	uploads := make([]storage.Upload, 0, len(files))
	closers := make([]io.Closer, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, f)
		uploads = append(uploads, storage.Upload{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return uploads, closers, nil
}

func DeleteNotice(svc *services.NoticeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if err := svc.Delete(c.Request.Context(), actor(c), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// GET /notices/stream pushes board changes as server-sent events.
func StreamNotices(svc *services.NoticeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := svc.Subscribe(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")
		c.Stream(func(w io.Writer) bool {
			ev, ok := <-events
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Op), ev)
			return true
		})
	}
}
