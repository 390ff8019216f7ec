package service

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"regportal/internal/auth"
	"regportal/internal/model"
	"regportal/internal/repo"
)

// fakeRepo is an in-memory repo.Repository.
type fakeRepo struct {
	mu            sync.Mutex
	trainings     map[uuid.UUID]model.Training
	registrations map[uuid.UUID]model.Registration
	methods       map[uuid.UUID]model.PaymentMethod
	users         map[string]model.User

	createRegErr error
	lastFilter   model.RegistrationFilter
	lastUpdate   map[string]any
}

var _ repo.Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		trainings:     map[uuid.UUID]model.Training{},
		registrations: map[uuid.UUID]model.Registration{},
		methods:       map[uuid.UUID]model.PaymentMethod{},
		users:         map[string]model.User{},
	}
}

func (f *fakeRepo) addTraining(name string, quota int) model.Training {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := model.Training{
		ID:        uuid.New(),
		Name:      name,
		StartDate: model.NewDate(2025, time.March, 1),
		EndDate:   model.NewDate(2025, time.March, 2),
		Quota:     quota,
		CreatedAt: time.Now(),
	}
	f.trainings[t.ID] = t
	return t
}

func (f *fakeRepo) addPaymentMethod(name string, qrisURL *string) model.PaymentMethod {
	f.mu.Lock()
	defer f.mu.Unlock()
	pm := model.PaymentMethod{ID: uuid.New(), MethodName: name, QRISImageURL: qrisURL, IsActive: true, CreatedAt: time.Now()}
	f.methods[pm.ID] = pm
	return pm
}

func (f *fakeRepo) addRegistration(trainingID uuid.UUID, status string) model.Registration {
	return f.addRegistrationAt(trainingID, status, time.Now())
}

func (f *fakeRepo) addRegistrationAt(trainingID uuid.UUID, status string, createdAt time.Time) model.Registration {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := model.Registration{
		ID:          uuid.New(),
		TrainingID:  trainingID,
		FullName:    "Student " + status,
		NIM:         "123",
		ClassOption: "A",
		PhoneNumber: "0812",
		Status:      status,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	f.registrations[r.ID] = r
	return r
}

func (f *fakeRepo) addUser(username, password, role string) model.User {
	hash, _ := auth.HashPassword(password)
	f.mu.Lock()
	defer f.mu.Unlock()
	u := model.User{ID: uuid.New(), Username: username, PasswordHash: hash, Role: role}
	f.users[username] = u
	return u
}

func (f *fakeRepo) registrationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.registrations)
}

func (f *fakeRepo) onlyRegistration(t *testing.T) model.Registration {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.registrations, 1)
	for _, r := range f.registrations {
		return r
	}
	return model.Registration{}
}

func (f *fakeRepo) ListTrainings(ctx context.Context) ([]model.Training, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Training, 0, len(f.trainings))
	for _, t := range f.trainings {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate.Time) })
	return out, nil
}

func (f *fakeRepo) GetTrainingByID(ctx context.Context, id uuid.UUID) (*model.Training, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trainings[id]
	if !ok {
		return nil, repo.ErrTrainingNotFound
	}
	return &t, nil
}

func (f *fakeRepo) CreateTraining(ctx context.Context, t *model.Training) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	f.trainings[t.ID] = *t
	return nil
}

func (f *fakeRepo) UpdateTraining(ctx context.Context, t *model.Training) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, ok := f.trainings[t.ID]
	if !ok {
		return repo.ErrTrainingNotFound
	}
	t.CreatedAt = old.CreatedAt
	f.trainings[t.ID] = *t
	return nil
}

func (f *fakeRepo) DeleteTraining(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.trainings[id]; !ok {
		return repo.ErrTrainingNotFound
	}
	delete(f.trainings, id)
	return nil
}

func (f *fakeRepo) CountRegistrationsByTraining(ctx context.Context) (map[uuid.UUID]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[uuid.UUID]int{}
	for _, r := range f.registrations {
		counts[r.TrainingID]++
	}
	return counts, nil
}

func (f *fakeRepo) CreateRegistration(ctx context.Context, reg *model.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createRegErr != nil {
		return f.createRegErr
	}
	reg.ID = uuid.New()
	reg.CreatedAt = time.Now()
	reg.UpdatedAt = reg.CreatedAt
	f.registrations[reg.ID] = *reg
	return nil
}

func (f *fakeRepo) CreateRegistrationWithinQuotaTx(ctx context.Context, reg *model.Registration) error {
	f.mu.Lock()
	t, ok := f.trainings[reg.TrainingID]
	if !ok {
		f.mu.Unlock()
		return repo.ErrTrainingNotFound
	}
	n := 0
	for _, r := range f.registrations {
		if r.TrainingID == reg.TrainingID {
			n++
		}
	}
	f.mu.Unlock()
	if n >= t.Quota {
		return repo.ErrTrainingFull
	}
	return f.CreateRegistration(ctx, reg)
}

func (f *fakeRepo) GetRegistrationByID(ctx context.Context, id uuid.UUID) (*model.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.registrations[id]
	if !ok {
		return nil, repo.ErrRegistrationNotFound
	}
	return &r, nil
}

func (f *fakeRepo) ListRegistrations(ctx context.Context, filter model.RegistrationFilter) ([]model.RegistrationDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	out := []model.RegistrationDetail{}
	for _, r := range f.registrations {
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		if filter.TrainingID != nil && r.TrainingID != *filter.TrainingID {
			continue
		}
		d := model.RegistrationDetail{Registration: r}
		if t, ok := f.trainings[r.TrainingID]; ok {
			name, quota := t.Name, t.Quota
			d.TrainingName = &name
			d.TrainingQuota = &quota
		}
		if r.SelectedPaymentMethodID != nil {
			if pm, ok := f.methods[*r.SelectedPaymentMethodID]; ok {
				name := pm.MethodName
				d.PaymentMethodName = &name
			}
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRepo) UpdateRegistration(ctx context.Context, id uuid.UUID, fields map[string]any) (*model.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUpdate = fields
	r, ok := f.registrations[id]
	if !ok {
		return nil, repo.ErrRegistrationNotFound
	}
	for col, v := range fields {
		switch col {
		case "status":
			r.Status = v.(string)
		case "full_name":
			r.FullName = v.(string)
		case "nim":
			r.NIM = v.(string)
		case "class_option":
			r.ClassOption = v.(string)
		case "phone_number":
			r.PhoneNumber = v.(string)
		case "training_id":
			r.TrainingID = v.(uuid.UUID)
		}
	}
	r.UpdatedAt = time.Now()
	f.registrations[id] = r
	return &r, nil
}

func (f *fakeRepo) DeleteRegistration(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.registrations[id]; !ok {
		return repo.ErrRegistrationNotFound
	}
	delete(f.registrations, id)
	return nil
}

func (f *fakeRepo) ListPaymentMethods(ctx context.Context, activeOnly bool) ([]model.PaymentMethod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.PaymentMethod{}
	for _, pm := range f.methods {
		if activeOnly && !pm.IsActive {
			continue
		}
		out = append(out, pm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MethodName < out[j].MethodName })
	return out, nil
}

func (f *fakeRepo) GetPaymentMethodByID(ctx context.Context, id uuid.UUID) (*model.PaymentMethod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pm, ok := f.methods[id]
	if !ok {
		return nil, repo.ErrPaymentMethodNotFound
	}
	return &pm, nil
}

func (f *fakeRepo) CreatePaymentMethod(ctx context.Context, pm *model.PaymentMethod) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pm.ID = uuid.New()
	pm.CreatedAt = time.Now()
	f.methods[pm.ID] = *pm
	return nil
}

func (f *fakeRepo) UpdatePaymentMethod(ctx context.Context, pm *model.PaymentMethod) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, ok := f.methods[pm.ID]
	if !ok {
		return repo.ErrPaymentMethodNotFound
	}
	pm.CreatedAt = old.CreatedAt
	f.methods[pm.ID] = *pm
	return nil
}

func (f *fakeRepo) DeletePaymentMethod(ctx context.Context, id uuid.UUID) (*model.PaymentMethod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pm, ok := f.methods[id]
	if !ok {
		return nil, repo.ErrPaymentMethodNotFound
	}
	delete(f.methods, id)
	return &pm, nil
}

func (f *fakeRepo) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok {
		return nil, repo.ErrUserNotFound
	}
	return &u, nil
}

func (f *fakeRepo) CreateUserIfMissing(ctx context.Context, u *model.User) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.Username]; ok {
		return false, nil
	}
	u.ID = uuid.New()
	f.users[u.Username] = *u
	return true, nil
}

func (f *fakeRepo) MigrateUp(string) error   { return nil }
func (f *fakeRepo) MigrateDown(string) error { return nil }

type storedObject struct {
	bucket, name, contentType string
	size                      int
}

// fakeStore records uploads and removals instead of talking to storage.
type fakeStore struct {
	mu        sync.Mutex
	uploads   []storedObject
	removed   []string
	uploadErr error
}

func (s *fakeStore) Upload(ctx context.Context, bucket, name, contentType string, body io.Reader) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, storedObject{bucket: bucket, name: name, contentType: contentType, size: len(data)})
	return nil
}

func (s *fakeStore) Remove(ctx context.Context, bucket string, names ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range names {
		s.removed = append(s.removed, bucket+"/"+n)
	}
	return nil
}

func (s *fakeStore) PublicURL(bucket, name string) string {
	return "https://store.test/storage/v1/object/public/" + bucket + "/" + name
}

func (s *fakeStore) calls() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads), len(s.removed)
}

type fakePublisher struct {
	mu       sync.Mutex
	messages [][]byte
	delays   []int
}

func (p *fakePublisher) Publish(message []byte, delaySeconds int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
	p.delays = append(p.delays, delaySeconds)
	return nil
}

type harness struct {
	repo   *fakeRepo
	store  *fakeStore
	tokens *auth.TokenIssuer
	svc    Service
	router *gin.Engine
}

func newHarness(t *testing.T, mutate func(*Deps)) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := auth.NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	h := &harness{repo: newFakeRepo(), store: &fakeStore{}, tokens: tokens}
	deps := Deps{
		Repo:     h.repo,
		Store:    h.store,
		Tokens:   tokens,
		Throttle: auth.NewLoginThrottle(3, time.Minute),
	}
	if mutate != nil {
		mutate(&deps)
	}
	h.svc = NewService(deps)

	r := gin.New()
	r.POST("/register", h.svc.SubmitRegistration)
	r.POST("/login", h.svc.Login)
	r.GET("/trainings", h.svc.ListTrainings)
	r.POST("/trainings", h.svc.CreateTraining)
	r.PUT("/trainings", h.svc.UpdateTraining)
	r.DELETE("/trainings", h.svc.DeleteTraining)
	r.GET("/payment-methods", h.svc.ListActivePaymentMethods)
	r.GET("/admin/payment-methods", h.svc.ListPaymentMethods)
	r.POST("/payment-methods", h.svc.CreatePaymentMethod)
	r.PUT("/payment-methods", h.svc.UpdatePaymentMethod)
	r.DELETE("/payment-methods", h.svc.DeletePaymentMethod)
	r.GET("/registrations", h.svc.ListRegistrations)
	r.GET("/registrations/export-csv", h.svc.ExportRegistrationsCSV)
	r.PUT("/registrations", h.svc.UpdateRegistration)
	r.DELETE("/registrations", h.svc.DeleteRegistration)
	h.router = r
	return h
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) doJSON(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return h.do(req)
}

type upload struct {
	field, filename string
	data            []byte
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, files ...upload) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func ptr[T any](v T) *T { return &v }

func httpGet(target string) *http.Request {
	return httptest.NewRequest(http.MethodGet, target, nil)
}
