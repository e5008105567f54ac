// tiles.go: the vector tile endpoint
package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// mvtContentType is the conventional media type for Mapbox Vector Tiles.
const mvtContentType = "application/vnd.mapbox-vector-tile"

// GetTile serves GET /tiles/:z/:x/:y(.mvt). It returns the binary MVT
// payload, or 204 No Content when nothing intersects the tile.
func (c *Controller) GetTile(ctx echo.Context) error {
	z, err := parseTileParam(ctx.Param("z"))
	if err != nil {
		return c.HandleError(ctx, err, "invalid zoom", http.StatusBadRequest)
	}
	x, err := parseTileParam(ctx.Param("x"))
	if err != nil {
		return c.HandleError(ctx, err, "invalid tile x", http.StatusBadRequest)
	}
	y, err := parseTileParam(strings.TrimSuffix(ctx.Param("y"), ".mvt"))
	if err != nil {
		return c.HandleError(ctx, err, "invalid tile y", http.StatusBadRequest)
	}

	if z > 22 || x >= 1<<z || y >= 1<<z {
		return c.HandleError(ctx, nil, "tile coordinate out of range", http.StatusBadRequest)
	}

	data, err := c.TileServer.Tile(ctx.Request().Context(), uint32(z), uint32(x), uint32(y))
	if err != nil {
		return c.HandleError(ctx, err, "tile generation failed", http.StatusInternalServerError)
	}
	if len(data) == 0 {
		return ctx.NoContent(http.StatusNoContent)
	}

	return ctx.Blob(http.StatusOK, mvtContentType, data)
}

func parseTileParam(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 32)
}
