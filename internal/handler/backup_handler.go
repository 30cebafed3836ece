package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/booknotes/internal/errors"
	"github.com/weiwangfds/booknotes/internal/logger"
	"github.com/weiwangfds/booknotes/internal/response"
	"github.com/weiwangfds/booknotes/internal/service/backup"
)

// maxArchiveSize 导入文件大小上限
const maxArchiveSize = 512 << 20

// BackupHandler 备份处理器
type BackupHandler struct {
	exporter *backup.Exporter
	importer *backup.Importer
}

// NewBackupHandler 创建备份处理器实例
func NewBackupHandler(exporter *backup.Exporter, importer *backup.Importer) *BackupHandler {
	return &BackupHandler{exporter: exporter, importer: importer}
}

// Export 导出全部数据
// @Summary 导出备份
// @Description 返回包含 data.json 和 images/ 的 zip 文件
// @Tags 数据备份
// @Produce application/zip
// @Security BearerAuth
// @Success 200 {file} file "备份文件"
// @Router /api/backup/export [get]
func (h *BackupHandler) Export(c *gin.Context) {
	w := &attachmentWriter{
		c:        c,
		filename: fmt.Sprintf("booknotes-backup-%s.zip", time.Now().Format("20060102-150405")),
	}
	if err := h.exporter.Export(c.Request.Context(), w); err != nil {
		if !w.started {
			response.Error(c, err)
			return
		}
		// 响应已开始发送，只能记录日志
		logger.ForRequest(c).WithError(err).Error("备份导出中断")
		c.Abort()
	}
}

// attachmentWriter 第一次写入时才设置下载响应头，之前出错仍可返回JSON错误
type attachmentWriter struct {
	c        *gin.Context
	filename string
	started  bool
}

func (w *attachmentWriter) Write(p []byte) (int, error) {
	if !w.started {
		w.started = true
		w.c.Header("Content-Type", "application/zip")
		w.c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, w.filename))
		w.c.Status(http.StatusOK)
	}
	return w.c.Writer.Write(p)
}

// Import 导入备份
// @Summary 导入备份
// @Description 追加导入备份中的全部记录，单条失败不影响其他记录
// @Tags 数据备份
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param archive formData file true "备份文件"
// @Success 200 {object} backup.Report
// @Failure 400 {object} response.ErrorResponse "备份文件无效或版本不支持"
// @Router /api/backup/import [post]
func (h *BackupHandler) Import(c *gin.Context) {
	fh, err := c.FormFile("archive")
	if err != nil {
		response.Error(c, errors.Validation("archive: file is required"))
		return
	}
	if fh.Size > maxArchiveSize {
		response.Error(c, errors.FileTooLarge("512MB"))
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.Error(c, errors.Wrap(errors.ErrFileReadFailed, errors.GetErrorMessage(errors.ErrFileReadFailed), err))
		return
	}
	defer f.Close()

	report, err := h.importer.Import(c.Request.Context(), f, fh.Size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}
