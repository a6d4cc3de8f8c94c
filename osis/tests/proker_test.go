package tests

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/claveora/OSIS-Integrated-Administration/osis/services"
)

func TestProkerDivisionSync(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	div1, err := admin.createDivision("Humas", "hubungan masyarakat")
	if err != nil {
		t.Fatal(err)
	}
	div2, err := admin.createDivision("Keagamaan", "")
	if err != nil {
		t.Fatal(err)
	}
	div3, err := admin.createDivision("Olahraga", "")
	if err != nil {
		t.Fatal(err)
	}

	prokerId, err := admin.createProker("Bakti Sosial", []string{div1, div2})
	if err != nil {
		t.Fatal(err)
	}

	proker, err := admin.getProker(prokerId)
	if err != nil {
		t.Fatal(err)
	}
	if len(proker.Divisions) != 2 {
		t.Fatalf("expected 2 divisions, got %d", len(proker.Divisions))
	}

	// Full replace: div1 drops out, div3 comes in.
	updated, err := admin.updateProker(prokerId, map[string]interface{}{"division_ids": []string{div2, div3}})
	if err != nil {
		t.Fatal(err)
	}
	if len(updated.Divisions) != 2 {
		t.Fatalf("expected 2 divisions after sync, got %d", len(updated.Divisions))
	}
	got := map[string]bool{}
	for _, d := range updated.Divisions {
		got[d.Id] = true
	}
	if !got[div2] || !got[div3] || got[div1] {
		t.Fatalf("division sync did not replace the set exactly: %v", got)
	}

	// Empty set detaches everything.
	updated, err = admin.updateProker(prokerId, map[string]interface{}{"division_ids": []string{}})
	if err != nil {
		t.Fatal(err)
	}
	if len(updated.Divisions) != 0 {
		t.Fatalf("expected no divisions after empty sync, got %d", len(updated.Divisions))
	}
}

func TestProkerDivisionSyncUnknownDivision(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	_, err = admin.createProker("Pentas Seni", []string{"7b8a4f0e-0000-0000-0000-000000000000"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown division id, got %v", err)
	}
}

func TestProkerAnggota(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	prokerId, err := admin.createProker("LDKS", nil)
	if err != nil {
		t.Fatal(err)
	}

	member := uniqueName("member")
	if _, err := env.newUserWithRole(member, env.adminRoleId); err != nil {
		t.Fatal(err)
	}
	memberId := userIdByUsername(t, env, member)

	anggotaId, err := admin.addAnggota(prokerId, memberId, "PJ Acara")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := admin.addAnggota(prokerId, memberId, "PJ Acara"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict adding the same user twice, got %v", err)
	}

	proker, err := admin.getProker(prokerId)
	if err != nil {
		t.Fatal(err)
	}
	if len(proker.Anggota) != 1 || proker.Anggota[0].Role != "PJ Acara" {
		t.Fatalf("unexpected anggota: %+v", proker.Anggota)
	}

	if err := admin.removeAnggota(prokerId, anggotaId); err != nil {
		t.Fatal(err)
	}
	if err := admin.removeAnggota(prokerId, anggotaId); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found removing anggota twice, got %v", err)
	}
}

func TestProkerMediaUploadAndDelete(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	prokerId, err := admin.createProker("Classmeeting", nil)
	if err != nil {
		t.Fatal(err)
	}

	mediaId, mediaUrl, err := admin.uploadMedia(prokerId, "foto.jpg", []byte("fake image bytes"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(mediaUrl, "/uploads/") {
		t.Fatalf("expected local media url, got %v", mediaUrl)
	}

	path := strings.TrimPrefix(mediaUrl, "/uploads/")
	exists, err := env.storage.Exists(path)
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Fatal("uploaded media file should exist in storage")
	}

	// Removing the backing file first must not break the delete: the
	// storage delete is idempotent.
	if err := env.storage.Delete(path); err != nil {
		t.Fatal(err)
	}
	if err := admin.removeMedia(prokerId, mediaId); err != nil {
		t.Fatal(err)
	}

	proker, err := admin.getProker(prokerId)
	if err != nil {
		t.Fatal(err)
	}
	if len(proker.Media) != 0 {
		t.Fatalf("expected no media after delete, got %d", len(proker.Media))
	}
}

func TestProkerMediaRejectsUnknownExtension(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	prokerId, err := admin.createProker("Upacara", nil)
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = admin.uploadMedia(prokerId, "virus.exe", []byte("nope"))
	if !errors.Is(err, ErrUnprocessable) {
		t.Fatalf("expected unprocessable for disallowed extension, got %v", err)
	}

	proker, err := admin.getProker(prokerId)
	if err != nil {
		t.Fatal(err)
	}
	if len(proker.Media) != 0 {
		t.Fatalf("rejected upload must not create media rows, got %d", len(proker.Media))
	}
}

func TestMediaFileServing(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	prokerId, err := admin.createProker("Dokumentasi", nil)
	if err != nil {
		t.Fatal(err)
	}

	content := []byte("fake image bytes")
	_, mediaUrl, err := admin.uploadMedia(prokerId, "foto.png", content)
	if err != nil {
		t.Fatal(err)
	}

	files := http.StripPrefix("/uploads/", services.MediaFiles(env.storage))

	w := httptest.NewRecorder()
	files.ServeHTTP(w, httptest.NewRequest("GET", mediaUrl, nil))
	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected media url %v to be served, got status %d", mediaUrl, res.StatusCode)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(body, content) {
		t.Fatal("served media does not match the uploaded content")
	}
	if contentType := res.Header.Get("Content-Type"); contentType != "image/png" {
		t.Fatalf("unexpected content type %v", contentType)
	}

	w = httptest.NewRecorder()
	files.ServeHTTP(w, httptest.NewRequest("GET", "/uploads/prokers/missing.png", nil))
	if w.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("expected not found for missing media file, got %d", w.Result().StatusCode)
	}
}

func TestGalleryShowsOnlyDoneProkers(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	doneId, err := admin.createProker("Pensi 2025", nil)
	if err != nil {
		t.Fatal(err)
	}
	plannedId, err := admin.createProker("Pensi 2026", nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := admin.updateProker(doneId, map[string]interface{}{"status": "done"}); err != nil {
		t.Fatal(err)
	}

	if _, err := admin.addMediaUrl(doneId, "image", "https://example.com/a.jpg"); err != nil {
		t.Fatal(err)
	}
	if _, err := admin.addMediaUrl(plannedId, "image", "https://example.com/b.jpg"); err != nil {
		t.Fatal(err)
	}

	// The gallery is public, no login required.
	anon := env.newClient()
	items, err := anon.gallery()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 gallery item, got %d", len(items))
	}
	if items[0].ProkerTitle != "Pensi 2025" {
		t.Fatalf("unexpected gallery item: %+v", items[0])
	}
}

func TestProkerDeleteRemovesMediaFiles(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	prokerId, err := admin.createProker("Makrab", nil)
	if err != nil {
		t.Fatal(err)
	}

	_, mediaUrl, err := admin.uploadMedia(prokerId, "video.mp4", []byte("fake video bytes"))
	if err != nil {
		t.Fatal(err)
	}

	if err := admin.Delete("/prokers/" + prokerId).Do(nil); err != nil {
		t.Fatal(err)
	}

	path := strings.TrimPrefix(mediaUrl, "/uploads/")
	exists, err := env.storage.Exists(filepath.FromSlash(path))
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("media file should be removed when the proker is deleted")
	}

	if _, err := admin.getProker(prokerId); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
