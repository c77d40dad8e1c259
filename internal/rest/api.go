package rest

import (
	"github.com/dfryer1193/photolog/photos/domain"
	"github.com/gin-gonic/gin"
)

func NewApi(router *gin.Engine, catalog PhotoCatalog, kind domain.PayloadKind) {
	photos := NewPhotoHandler(catalog, kind)

	photosV1 := router.Group("photos/v1")
	{
		photosV1.GET("/", photos.ListPhotos)
		photosV1.POST("/", photos.CreatePhoto)
		photosV1.DELETE("/", photos.DeleteAllPhotos)
		photosV1.GET("/:photoId", photos.GetPhoto)
		photosV1.GET("/:photoId/payload", photos.GetPayload)
		photosV1.PUT("/:photoId", photos.UpdatePhoto)
		photosV1.DELETE("/:photoId", photos.DeletePhoto)
	}
}
