package geo

import (
	"archive/zip"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"
)

// Attribute names tried, in order, for a region feature's display name.
var regionNameFields = []string{"NAME", "REGION", "ADMIN"}

// ImportRegion reads polygon features from an ESRI shapefile (or a .zip
// containing one) and assembles them into a single named region. A non-empty
// name overrides the shapefile's name attribute; otherwise the first
// feature's name field is used, then the file basename.
func ImportRegion(path, name string) (*Region, error) {
	log := zap.L().With(zap.String("component", "geo.regions"))

	shpPath, err := resolveShapefile(path)
	if err != nil {
		return nil, err
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	nameIdx := -1
	for _, f := range regionNameFields {
		if idx := fieldIndex(reader, f); idx >= 0 {
			nameIdx = idx
			break
		}
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	box := BBox{MinLat: 90, MaxLat: -90, MinLng: 180, MaxLng: -180}
	features := 0
	attrName := ""

	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || poly.NumParts == 0 || len(poly.Points) == 0 {
			continue
		}

		if attrName == "" && nameIdx >= 0 {
			attrName = strings.TrimSpace(reader.Attribute(nameIdx))
		}

		if appendPolygonParts(mp, poly) {
			features++
			for _, pt := range poly.Points {
				box.MinLat = math.Min(box.MinLat, pt.Y)
				box.MaxLat = math.Max(box.MaxLat, pt.Y)
				box.MinLng = math.Min(box.MinLng, pt.X)
				box.MaxLng = math.Max(box.MaxLng, pt.X)
			}
		}
	}

	if features == 0 {
		return nil, eris.Errorf("geo: no polygon features in %s", path)
	}

	data, err := ewkb.Marshal(mp, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode region geometry")
	}

	if name == "" {
		name = attrName
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	region := &Region{
		Name:       name,
		SourceFile: filepath.Base(path),
		Features:   features,
		BBox:       box,
		Geometry:   data,
		CreatedAt:  time.Now().UTC(),
	}

	log.Info("region imported",
		zap.String("name", region.Name),
		zap.Int("features", features),
		zap.String("source", region.SourceFile),
	)
	return region, nil
}

// appendPolygonParts pushes each ring of a shapefile polygon into the
// multipolygon as its own single-ring polygon. Reports whether anything was
// added. Ring grouping does not matter downstream: the even-odd point test
// only sees the flat set of rings.
func appendPolygonParts(mp *geom.MultiPolygon, p *shp.Polygon) bool {
	added := false
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		if len(flat) < 6 {
			continue
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("geo: skipping malformed region ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("geo: skipping malformed region part", zap.Int32("part", i), zap.Error(err))
			continue
		}
		added = true
	}
	return added
}

// fieldIndex returns the index of a named field in the shapefile, or -1 if
// not found.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}

// resolveShapefile returns a path to a .shp file, extracting zip archives
// (the usual distribution form for boundary data) to a temp directory first.
func resolveShapefile(path string) (string, error) {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return path, nil
	}

	extractDir, err := os.MkdirTemp("", "fieldsat-region-")
	if err != nil {
		return "", eris.Wrap(err, "geo: create extract dir")
	}
	if err := extractZIP(path, extractDir); err != nil {
		return "", eris.Wrapf(err, "geo: extract %s", path)
	}
	return findFileByExt(extractDir, ".shp")
}

// extractZIP extracts a ZIP archive to the destination directory.
func extractZIP(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrap(err, "open zip")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		name := filepath.Base(f.Name)
		destPath := filepath.Join(destDir, name)

		if f.FileInfo().IsDir() {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return eris.Wrapf(err, "open zip entry %s", f.Name)
		}

		outFile, err := os.Create(destPath)
		if err != nil {
			_ = rc.Close()
			return eris.Wrapf(err, "create %s", destPath)
		}

		if _, err := io.Copy(outFile, rc); err != nil {
			_ = outFile.Close()
			_ = rc.Close()
			return eris.Wrapf(err, "extract %s", f.Name)
		}
		_ = outFile.Close()
		_ = rc.Close()
	}

	return nil
}

// findFileByExt finds the first file with the given extension in a directory.
func findFileByExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", eris.Wrap(err, "read directory")
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", eris.Errorf("no %s file found in %s", ext, dir)
}
