package mobile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
)

const buildGUIDEntry = "UnityBuildGuid.txt"

// Generator builds appendices for packages and stores them under the
// build GUID of the report they belong to.
type Generator struct {
	Store   *Store
	Android *Analyzer
	Apple   *Analyzer
}

// GenerateAndroid builds and stores the appendix of an APK or AAB.
func (g *Generator) GenerateAndroid(ctx context.Context, pkgPath, guid string) (*Appendix, error) {
	return g.generate(ctx, pkgPath, guid, g.Android)
}

// GenerateApple builds and stores the appendix of an IPA. The package
// must carry the GUID of the build it was produced from.
func (g *Generator) GenerateApple(ctx context.Context, pkgPath, guid string) (*Appendix, error) {
	pkg, err := OpenPackage(pkgPath)
	if err != nil {
		return nil, err
	}
	if err := checkBuildGUID(pkg, guid); err != nil {
		return nil, err
	}
	return g.generate(ctx, pkgPath, guid, g.Apple)
}

func (g *Generator) generate(ctx context.Context, pkgPath, guid string, analyzer *Analyzer) (*Appendix, error) {
	if _, err := CanonicalKey(guid); err != nil {
		return nil, err
	}
	app, err := BuildAppendix(ctx, pkgPath, analyzer)
	if err != nil {
		return nil, err
	}
	if err := g.Store.Save(guid, app); err != nil {
		return nil, err
	}
	slog.Info("Saved mobile appendix", "guid", guid, "files", len(app.Files), "architectures", len(app.Architectures))
	return app, nil
}

// checkBuildGUID compares guid with the GUID embedded in the package.
// Packages built without the GUID entry cannot be matched to a report.
func checkBuildGUID(pkg *Package, guid string) error {
	data, err := pkg.readEntry(func(name string) bool { return path.Base(name) == buildGUIDEntry })
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s has no %s; it was built before build GUIDs were embedded", ErrValidation, pkg.Path, buildGUIDEntry)
	}
	if err != nil {
		return err
	}

	embedded := strings.TrimSpace(string(data))
	want, wantErr := CanonicalKey(guid)
	got, gotErr := CanonicalKey(embedded)
	if wantErr != nil || gotErr != nil || want != got {
		return fmt.Errorf("%w: package GUID %q does not match report GUID %q", ErrValidation, embedded, guid)
	}
	return nil
}
