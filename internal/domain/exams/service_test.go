package exams

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	memoryhints "vet-exam-orders/internal/adapters/hints/memory"
	"vet-exam-orders/internal/domain/emaillog"
	"vet-exam-orders/internal/domain/suggestions"
	"vet-exam-orders/internal/platform/logger"
	"vet-exam-orders/internal/ports/auth"
	"vet-exam-orders/internal/ports/files"
)

// -------------------------
// Fakes (in-memory)
// -------------------------

type fakeRepo struct {
	mu     sync.Mutex
	byID   map[int64]Exam
	nextID int64

	createCalls  int
	updateCalls  int
	paymentCalls int
	statusCalls  int

	// blockCreate hace que Create espere hasta que lo destraben
	// (para simular un envío en vuelo).
	blockCreate chan struct{}

	failUpdatePayment bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: map[int64]Exam{}, nextID: 1}
}

func (r *fakeRepo) Create(ctx context.Context, e Exam) (Exam, error) {
	r.mu.Lock()
	r.createCalls++
	block := r.blockCreate
	r.mu.Unlock()

	if block != nil {
		<-block
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = r.nextID
	r.nextID++
	r.byID[e.ID] = e
	return e, nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id int64) (Exam, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return Exam{}, ErrNotFound
	}
	return e, nil
}

func (r *fakeRepo) Update(ctx context.Context, e Exam) (Exam, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateCalls++
	prev, ok := r.byID[e.ID]
	if !ok {
		return Exam{}, ErrNotFound
	}
	e.PDFPath = prev.PDFPath
	r.byID[e.ID] = e
	return e, nil
}

func (r *fakeRepo) UpdatePayment(ctx context.Context, id int64, p PaymentPatch) (Exam, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paymentCalls++
	if r.failUpdatePayment {
		return Exam{}, errors.New("store rejected payment update")
	}
	e, ok := r.byID[id]
	if !ok {
		return Exam{}, ErrNotFound
	}
	e.Paid = p.Paid
	e.PaymentTypeID = p.PaymentTypeID
	e.PaymentNote = p.PaymentNote
	r.byID[id] = e
	return e, nil
}

func (r *fakeRepo) UpdateStatus(ctx context.Context, id int64, s Status) (Exam, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statusCalls++
	e, ok := r.byID[id]
	if !ok {
		return Exam{}, ErrNotFound
	}
	e.Status = s
	r.byID[id] = e
	return e, nil
}

func (r *fakeRepo) SetPDFPath(ctx context.Context, id int64, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	e.PDFPath = &path
	r.byID[id] = e
	return nil
}

func (r *fakeRepo) List(ctx context.Context, filter ListFilter) ([]Exam, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Exam, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, e)
	}
	return out, nil
}

func (r *fakeRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *fakeRepo) storeCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createCalls + r.updateCalls + r.paymentCalls + r.statusCalls
}

type fakeFiles struct {
	mu      sync.Mutex
	repo    *fakeRepo
	uploads int
	runs    int
	fail    bool
}

func (f *fakeFiles) Upload(ctx context.Context, examID int64, uploads []files.Upload) error {
	f.mu.Lock()
	f.runs++
	if f.fail {
		f.mu.Unlock()
		return errors.New("file store down")
	}
	f.uploads += len(uploads)
	var pdfKey string
	for _, u := range uploads {
		if strings.HasSuffix(strings.ToLower(u.Name), ".pdf") {
			pdfKey = "exams/" + u.Name
		}
	}
	f.mu.Unlock()

	if pdfKey == "" {
		return nil
	}
	return f.repo.SetPDFPath(ctx, examID, pdfKey)
}

type fakeGateway struct {
	mu        sync.Mutex
	entries   []emaillog.Entry
	nextID    int64
	sendCalls int
	failSend  bool
	now       func() time.Time
}

func newFakeGateway(now func() time.Time) *fakeGateway {
	return &fakeGateway{nextID: 1, now: now}
}

func (g *fakeGateway) Send(ctx context.Context, examID int64, text string) (emaillog.Entry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sendCalls++
	if g.failSend {
		return emaillog.Entry{}, emaillog.ErrGateway
	}
	e := emaillog.Entry{
		ID:        g.nextID,
		ExamID:    examID,
		Status:    emaillog.StatusSent,
		SentTo:    "clinic@example.com",
		CreatedAt: g.now(),
	}
	g.nextID++
	g.entries = append(g.entries, e)
	return e, nil
}

func (g *fakeGateway) Log(ctx context.Context, examID int64) ([]emaillog.Entry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]emaillog.Entry, 0)
	for _, e := range g.entries {
		if e.ExamID == examID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (g *fakeGateway) sentCount(examID int64) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, e := range g.entries {
		if e.ExamID == examID && e.Status == emaillog.StatusSent {
			n++
		}
	}
	return n
}

type recordSink struct {
	mu    sync.Mutex
	ticks []int
	logs  [][]emaillog.Entry
	warns []string
}

func (s *recordSink) SendingTick(seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks = append(s.ticks, seconds)
}

func (s *recordSink) EmailLogs(entries []emaillog.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entries)
}

func (s *recordSink) Warn(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warns = append(s.warns, msg)
}

// -------------------------
// Harness
// -------------------------

type testEnv struct {
	repo    *fakeRepo
	files   *fakeFiles
	gateway *fakeGateway
	hints   *memoryhints.Store
	svc     *Service
	now     time.Time
}

func newTestEnv() *testEnv {
	env := &testEnv{
		repo: newFakeRepo(),
		now:  time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	env.files = &fakeFiles{repo: env.repo}
	env.gateway = newFakeGateway(func() time.Time { return env.now })
	env.hints = memoryhints.NewStore()

	quiet := logger.New(logger.Options{Level: logger.Error})
	pipeline := NewPipeline(env.repo, env.files, env.gateway, quiet)
	pipeline.now = func() time.Time { return env.now }
	pipeline.tick = time.Hour // sin ticks en tests del servicio

	env.svc = NewService(env.repo, pipeline, suggestions.NewService(env.hints), quiet)
	env.svc.now = func() time.Time { return env.now }
	env.svc.spawn = func(fn func()) { fn() } // pipeline síncrono en tests

	return env
}

func validInput() SubmitInput {
	return SubmitInput{
		AnimalName:   "Rex",
		Tutor:        "Ana Souza",
		Veterinarian: "Dr. Costa",
		Date:         time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		ExamTypeID:   2,
		ClinicID:     5,
		Value:        180.50,
	}
}

func admin() auth.Claims {
	return auth.Claims{UserID: "u-admin", Role: auth.RoleAdmin}
}

func employee() auth.Claims {
	return auth.Claims{UserID: "u-emp", Role: auth.RoleEmployee}
}

// -------------------------
// Submit
// -------------------------

func TestService_Submit_EmptyAnimalName_NoStoreCall(t *testing.T) {
	env := newTestEnv()

	in := validInput()
	in.AnimalName = "   "

	_, err := env.svc.Submit(context.Background(), admin(), in, NopSink{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if env.repo.storeCalls() != 0 {
		t.Fatalf("expected no store calls, got %d", env.repo.storeCalls())
	}
}

func TestService_Submit_PaidWithoutPaymentType_NoStoreCall(t *testing.T) {
	env := newTestEnv()

	in := validInput()
	in.Paid = true
	in.PaymentTypeID = nil

	_, err := env.svc.Submit(context.Background(), admin(), in, NopSink{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if env.repo.storeCalls() != 0 {
		t.Fatalf("expected no store calls, got %d", env.repo.storeCalls())
	}
}

func TestService_Submit_SecondConcurrentRejected(t *testing.T) {
	env := newTestEnv()

	block := make(chan struct{})
	env.repo.blockCreate = block

	done := make(chan error, 1)
	go func() {
		_, err := env.svc.Submit(context.Background(), employee(), validInput(), NopSink{})
		done <- err
	}()

	// Esperar a que el primer Submit esté dentro de Create
	deadline := time.After(2 * time.Second)
	for {
		env.repo.mu.Lock()
		started := env.repo.createCalls == 1
		env.repo.mu.Unlock()
		if started {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first submit never reached the store")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	// El segundo rebota de inmediato, sin tocar el store
	_, err := env.svc.Submit(context.Background(), employee(), validInput(), NopSink{})
	if !errors.Is(err, ErrSubmissionInFlight) {
		t.Fatalf("expected ErrSubmissionInFlight, got %v", err)
	}
	env.repo.mu.Lock()
	if env.repo.createCalls != 1 {
		t.Fatalf("expected exactly one create call, got %d", env.repo.createCalls)
	}
	env.repo.mu.Unlock()

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first submit failed: %v", err)
	}

	// Liberado el guard, un tercer Submit pasa
	if _, err := env.svc.Submit(context.Background(), employee(), validInput(), NopSink{}); err != nil {
		t.Fatalf("expected submit after release to succeed, got %v", err)
	}
}

func TestService_Submit_PaidFalse_RoundTripClearsPayment(t *testing.T) {
	env := newTestEnv()

	in := validInput()
	in.Paid = false
	in.PaymentNote = "nota vieja"
	in.PaymentTypeID = nil

	res, err := env.svc.Submit(context.Background(), employee(), in, NopSink{})
	if err != nil {
		t.Fatalf("submit error: %v", err)
	}

	got, err := env.svc.GetByID(context.Background(), res.ExamID)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if got.PaymentNote != "" {
		t.Fatalf("expected empty payment_note, got %q", got.PaymentNote)
	}
	if got.PaymentTypeID != nil {
		t.Fatalf("expected nil payment_type_id, got %v", *got.PaymentTypeID)
	}
}

func TestService_Submit_Create_RemembersSuggestions(t *testing.T) {
	env := newTestEnv()

	if _, err := env.svc.Submit(context.Background(), employee(), validInput(), NopSink{}); err != nil {
		t.Fatalf("submit error: %v", err)
	}

	animals, _ := env.hints.Load(context.Background(), suggestions.KeyAnimals)
	tutors, _ := env.hints.Load(context.Background(), suggestions.KeyTutors)
	if len(animals) != 1 || animals[0] != "Rex" {
		t.Fatalf("unexpected animal hints: %v", animals)
	}
	if len(tutors) != 1 || tutors[0] != "Ana Souza" {
		t.Fatalf("unexpected tutor hints: %v", tutors)
	}

	// Repetir el mismo envío no duplica hints
	if _, err := env.svc.Submit(context.Background(), employee(), validInput(), NopSink{}); err != nil {
		t.Fatalf("submit #2 error: %v", err)
	}
	animals, _ = env.hints.Load(context.Background(), suggestions.KeyAnimals)
	if len(animals) != 1 {
		t.Fatalf("expected deduplicated hints, got %v", animals)
	}
}

func TestService_Submit_Update_ReReadsServerState(t *testing.T) {
	env := newTestEnv()

	res, err := env.svc.Submit(context.Background(), employee(), validInput(), NopSink{})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}

	// El file store setea pdf_path por fuera del formulario
	if err := env.repo.SetPDFPath(context.Background(), res.ExamID, "exams/1/result.pdf"); err != nil {
		t.Fatalf("set pdf: %v", err)
	}

	in := validInput()
	in.ExamID = &res.ExamID
	in.Tutor = "Otro Tutor"

	updated, err := env.svc.Submit(context.Background(), employee(), in, NopSink{})
	if err != nil {
		t.Fatalf("update error: %v", err)
	}
	if updated.Exam.PDFPath == nil || *updated.Exam.PDFPath != "exams/1/result.pdf" {
		t.Fatalf("expected re-read to pick up pdf_path, got %v", updated.Exam.PDFPath)
	}
	if updated.Exam.Tutor != "Otro Tutor" {
		t.Fatalf("expected updated tutor, got %q", updated.Exam.Tutor)
	}
}

func TestService_Submit_AdminWithFiles_RunsPipeline(t *testing.T) {
	env := newTestEnv()

	in := validInput()
	in.Files = []files.Upload{{Name: "result.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}}

	sink := &recordSink{}
	res, err := env.svc.Submit(context.Background(), admin(), in, sink)
	if err != nil {
		t.Fatalf("submit error: %v", err)
	}
	if !res.Sending {
		t.Fatalf("expected sending=true")
	}
	if env.files.uploads != 1 {
		t.Fatalf("expected 1 upload, got %d", env.files.uploads)
	}
	if got := env.gateway.sentCount(res.ExamID); got != 1 {
		t.Fatalf("expected 1 Sent entry, got %d", got)
	}
	if len(sink.logs) == 0 {
		t.Fatalf("expected refreshed email logs on the sink")
	}
}

func TestService_Submit_NonAdmin_NoPipeline(t *testing.T) {
	env := newTestEnv()

	in := validInput()
	in.Files = []files.Upload{{Name: "result.pdf", Data: []byte("%PDF")}}

	res, err := env.svc.Submit(context.Background(), employee(), in, NopSink{})
	if err != nil {
		t.Fatalf("submit error: %v", err)
	}
	if res.Sending {
		t.Fatalf("expected sending=false for non-admin")
	}
	if env.files.uploads != 0 || env.gateway.sendCalls != 0 {
		t.Fatalf("expected no pipeline activity")
	}
}

func TestService_Submit_AdminWithoutFiles_NoPipeline(t *testing.T) {
	env := newTestEnv()

	res, err := env.svc.Submit(context.Background(), admin(), validInput(), NopSink{})
	if err != nil {
		t.Fatalf("submit error: %v", err)
	}
	if res.Sending {
		t.Fatalf("expected sending=false without files")
	}
	if env.gateway.sendCalls != 0 {
		t.Fatalf("expected no sends")
	}
}

// -------------------------
// SetPaid / SetStatus
// -------------------------

func TestService_SetPaid_RequiresPaymentType(t *testing.T) {
	env := newTestEnv()

	res, _ := env.svc.Submit(context.Background(), employee(), validInput(), NopSink{})

	_, err := env.svc.SetPaid(context.Background(), &res.ExamID, true, nil, "")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	env.repo.mu.Lock()
	if env.repo.paymentCalls != 0 {
		t.Fatalf("expected no update request, got %d", env.repo.paymentCalls)
	}
	env.repo.mu.Unlock()
}

func TestService_SetPaid_Unsaved_ValidatesAndDefers(t *testing.T) {
	env := newTestEnv()

	ptID := int64(3)
	exam, err := env.svc.SetPaid(context.Background(), nil, true, &ptID, "efectivo")
	if err != nil {
		t.Fatalf("expected deferred success, got %v", err)
	}
	if exam != nil {
		t.Fatalf("expected nil exam on deferred path")
	}
	if env.repo.storeCalls() != 0 {
		t.Fatalf("expected no store calls on deferred path")
	}
}

func TestService_SetPaid_Saved_UpdatesAndRereads(t *testing.T) {
	env := newTestEnv()

	res, _ := env.svc.Submit(context.Background(), employee(), validInput(), NopSink{})

	ptID := int64(3)
	exam, err := env.svc.SetPaid(context.Background(), &res.ExamID, true, &ptID, "efectivo")
	if err != nil {
		t.Fatalf("set paid error: %v", err)
	}
	if exam == nil || !exam.Paid || exam.PaymentTypeID == nil || *exam.PaymentTypeID != 3 {
		t.Fatalf("expected authoritative paid state, got %+v", exam)
	}
	if exam.PaymentNote != "efectivo" {
		t.Fatalf("expected note, got %q", exam.PaymentNote)
	}
}

func TestService_SetPaid_UnpaidClearsNoteAndType(t *testing.T) {
	env := newTestEnv()

	in := validInput()
	ptID := int64(3)
	in.Paid = true
	in.PaymentTypeID = &ptID
	in.PaymentNote = "pagado en caja"
	res, _ := env.svc.Submit(context.Background(), employee(), in, NopSink{})

	exam, err := env.svc.SetPaid(context.Background(), &res.ExamID, false, &ptID, "se mantiene?")
	if err != nil {
		t.Fatalf("set paid error: %v", err)
	}
	if exam.Paid || exam.PaymentTypeID != nil || exam.PaymentNote != "" {
		t.Fatalf("expected cleared payment fields, got %+v", exam)
	}
}

func TestService_SetPaid_StoreFailure_SurfacesError(t *testing.T) {
	env := newTestEnv()

	res, _ := env.svc.Submit(context.Background(), employee(), validInput(), NopSink{})
	env.repo.failUpdatePayment = true

	ptID := int64(3)
	_, err := env.svc.SetPaid(context.Background(), &res.ExamID, true, &ptID, "")
	if err == nil {
		t.Fatalf("expected error so the caller can roll back the toggle")
	}

	// El snapshot previo sigue siendo el autoritativo
	got, _ := env.svc.GetByID(context.Background(), res.ExamID)
	if got.Paid {
		t.Fatalf("expected prior paid=false to remain")
	}
}

func TestService_SetStatus_Unsaved_Defers(t *testing.T) {
	env := newTestEnv()

	exam, err := env.svc.SetStatus(context.Background(), nil, StatusCompleted)
	if err != nil {
		t.Fatalf("expected deferred success, got %v", err)
	}
	if exam != nil || env.repo.storeCalls() != 0 {
		t.Fatalf("expected no store interaction on deferred path")
	}
}

func TestService_SetStatus_Saved_UpdatesImmediately(t *testing.T) {
	env := newTestEnv()

	res, _ := env.svc.Submit(context.Background(), employee(), validInput(), NopSink{})

	exam, err := env.svc.SetStatus(context.Background(), &res.ExamID, StatusCompleted)
	if err != nil {
		t.Fatalf("set status error: %v", err)
	}
	if exam.Status != StatusCompleted {
		t.Fatalf("expected Completed, got %s", exam.Status)
	}
}

func TestService_SetStatus_RejectsUnknown(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.SetStatus(context.Background(), nil, Status("Archived"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

// -------------------------
// Guard
// -------------------------

func TestSubmissionGuard_SingleSlot(t *testing.T) {
	g := newSubmissionGuard()

	if !g.tryAcquire() {
		t.Fatalf("first acquire must succeed")
	}
	if g.tryAcquire() {
		t.Fatalf("second acquire must fail while held")
	}
	g.release()
	if !g.tryAcquire() {
		t.Fatalf("acquire after release must succeed")
	}

	// release doble no rompe
	g.release()
	g.release()
	if !g.tryAcquire() {
		t.Fatalf("acquire after double release must succeed")
	}
}
