package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/marketplace-backend/internal/models"
)

func strPtr(s string) *string { return &s }

func TestUsers_CreateAndLookup(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	created, err := s.CreateUser(ctx, &models.User{
		Email:    "Alice@Example.com",
		Username: strPtr("alice"),
		Phone:    strPtr("+4512345678"),
		FullName: "Alice",
		IsActive: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", created.Email)
	assert.False(t, created.IsVerified)

	tests := []struct {
		name       string
		identifier string
	}{
		{"email any case", "ALICE@example.com"},
		{"phone", "+4512345678"},
		{"username", "alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := s.GetUserByLogin(ctx, tt.identifier)
			require.NoError(t, err)
			assert.Equal(t, created.ID, u.ID)
		})
	}

	_, err = s.GetUserByLogin(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.CreateUser(ctx, &models.User{Email: "alice@example.com", IsActive: true})
	assert.ErrorIs(t, err, ErrConflict)
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "users_email_key", conflict.Constraint)
}

func TestUsers_VerifyOTP(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	f := NewTestDataFactory(s)
	now := time.Now()

	u := f.CreateUser(t, "otp@example.com", false)
	require.NoError(t, s.SetOTP(ctx, u.ID, "123456", now.Add(30*time.Minute)))

	verified, err := s.VerifyOTP(ctx, "123456", now)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)
	assert.Nil(t, verified.OTP)

	_, err = s.VerifyOTP(ctx, "123456", now)
	assert.ErrorIs(t, err, ErrNotFound)

	expired := f.CreateUser(t, "late@example.com", false)
	require.NoError(t, s.SetOTP(ctx, expired.ID, "654321", now.Add(-time.Minute)))
	_, err = s.VerifyOTP(ctx, "654321", now)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUsers_VerifyOTPConcurrent(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	f := NewTestDataFactory(s)
	now := time.Now()

	u := f.CreateUser(t, "race@example.com", false)
	require.NoError(t, s.SetOTP(ctx, u.ID, "111222", now.Add(time.Hour)))

	var (
		wg      sync.WaitGroup
		success atomic.Int32
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.VerifyOTP(ctx, "111222", now); err == nil {
				success.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), success.Load())
}

func TestUsers_SetOTPCollision(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	f := NewTestDataFactory(s)

	a := f.CreateUser(t, "a@example.com", false)
	b := f.CreateUser(t, "b@example.com", false)
	require.NoError(t, s.SetOTP(ctx, a.ID, "999999", time.Now().Add(time.Hour)))

	err := s.SetOTP(ctx, b.ID, "999999", time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, ErrOTPCollision)
}

func TestUsers_ConsumeResetOTPRequiresVerified(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	f := NewTestDataFactory(s)
	now := time.Now()

	unverified := f.CreateUser(t, "u@example.com", false)
	require.NoError(t, s.SetOTP(ctx, unverified.ID, "100200", now.Add(time.Hour)))
	_, err := s.ConsumeResetOTP(ctx, "100200", now)
	assert.ErrorIs(t, err, ErrNotFound)

	verified := f.CreateUser(t, "v@example.com", true)
	require.NoError(t, s.SetOTP(ctx, verified.ID, "300400", now.Add(time.Hour)))
	u, err := s.ConsumeResetOTP(ctx, "300400", now)
	require.NoError(t, err)
	assert.Equal(t, verified.ID, u.ID)

	_, err = s.GetUserByOTP(ctx, "300400")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUsers_UpdateProfilePartial(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	f := NewTestDataFactory(s)

	u := f.CreateUser(t, "p@example.com", true)
	rate := 450.5
	updated, err := s.UpdateProfile(ctx, u.ID, models.ProfileUpdate{
		Country:    strPtr("Denmark"),
		HourlyRate: &rate,
	})
	require.NoError(t, err)
	assert.Equal(t, "Denmark", updated.Country)
	assert.Equal(t, "Test User", updated.FullName)
	require.NotNil(t, updated.HourlyRate)
	assert.InDelta(t, 450.5, *updated.HourlyRate, 0.001)
}

func TestInTx_HooksRunAfterCommitOnly(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	var calls atomic.Int32
	s.OnCommit(EntityUsers, func(context.Context) { calls.Add(1) })

	err := s.InTx(ctx, func(ctx context.Context) error {
		_, err := s.CreateUser(ctx, &models.User{Email: "tx1@example.com", IsActive: true})
		require.NoError(t, err)
		_, err = s.CreateUser(ctx, &models.User{Email: "tx2@example.com", IsActive: true})
		require.NoError(t, err)
		assert.Equal(t, int32(0), calls.Load())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	boom := errors.New("boom")
	err = s.InTx(ctx, func(ctx context.Context) error {
		_, err := s.CreateUser(ctx, &models.User{Email: "tx3@example.com", IsActive: true})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), calls.Load())

	_, err = s.GetUserByEmail(ctx, "tx3@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	total, verified, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, int64(0), verified)
}

func TestPlans_RemoteIDsAndList(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	f := NewTestDataFactory(s)

	pro := f.CreatePlan(t, models.PlanPro, 49.99)
	f.CreatePlan(t, models.PlanBasic, 9.99)
	assert.JSONEq(t, `[]`, string(pro.Features))

	require.NoError(t, s.SetPlanRemoteIDs(ctx, pro.ID, "prod_1", "price_1"))
	got, err := s.GetPlan(ctx, pro.ID)
	require.NoError(t, err)
	assert.Equal(t, "price_1", got.StripePriceID)

	plans, count, err := s.ListPlans(ctx, models.Page{Number: 1, Size: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	require.Len(t, plans, 1)
	assert.Equal(t, models.PlanBasic, plans[0].Name)

	_, err = s.GetPlan(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	updated, err := s.UpsertPlanByName(ctx, models.PlanCreate{Name: models.PlanPro, Price: 59})
	require.NoError(t, err)
	assert.Equal(t, pro.ID, updated.ID)
	assert.Empty(t, updated.StripePriceID)
}

func TestSubscriptions_UpsertIsIdempotent(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	f := NewTestDataFactory(s)

	u := f.CreateUser(t, "sub@example.com", true)
	basic := f.CreatePlan(t, models.PlanBasic, 10)
	pro := f.CreatePlan(t, models.PlanPro, 30)

	complete := func(remoteID string, planID int64) {
		err := s.InTx(ctx, func(ctx context.Context) error {
			if err := s.LockUser(ctx, u.ID); err != nil {
				return err
			}
			if _, err := s.DeactivateOtherActive(ctx, u.ID, remoteID, time.Now()); err != nil {
				return err
			}
			_, err := s.UpsertSubscriptionByRemoteID(ctx, UpsertRemoteSubscription{
				UserID: u.ID, PlanID: planID, RemoteID: remoteID, CustomerID: "cus_1", Now: time.Now(),
			})
			return err
		})
		require.NoError(t, err)
	}

	complete("sub_1", basic.ID)
	complete("sub_1", basic.ID)
	assert.Equal(t, 1, f.CountActiveSubscriptions(t, u.ID))

	complete("sub_2", pro.ID)
	assert.Equal(t, 1, f.CountActiveSubscriptions(t, u.ID))

	subs, err := s.ListUserSubscriptions(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	active, err := s.GetActiveSubscription(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "sub_2", *active.StripeSubscriptionID)
	require.NotNil(t, subs[0].Plan)

	earnings, err := s.SumActiveEarnings(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 30.0, earnings, 0.001)

	old, err := s.GetSubscriptionByRemoteID(ctx, "sub_1", false)
	require.NoError(t, err)
	assert.False(t, old.Active)
	assert.NotNil(t, old.EndDate)
}

func TestSupplyChain_ScopedToSupervisor(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	f := NewTestDataFactory(s)

	owner := f.CreateUser(t, "owner@example.com", true)
	other := f.CreateUser(t, "other@example.com", true)

	sp, err := s.CreateSupplier(ctx, owner.ID, models.SupplierInput{
		SupplierName:  strPtr("Acme"),
		SupplierEmail: strPtr("acme@example.com"),
	})
	require.NoError(t, err)
	assert.False(t, sp.AddToCalender)

	_, err = s.GetSupplier(ctx, other.ID, sp.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteSupplier(ctx, other.ID, sp.ID), ErrNotFound)

	updated, err := s.UpdateSupplier(ctx, owner.ID, sp.ID, models.SupplierInput{Role: strPtr("Plumbing")})
	require.NoError(t, err)
	assert.Equal(t, "Plumbing", updated.Role)
	assert.Equal(t, "Acme", updated.SupplierName)

	days := []string{"Monday", "Friday"}
	r, err := s.CreateResource(ctx, owner.ID, models.ResourceInput{
		Name:      strPtr("Crew A"),
		Days:      &days,
		StartTime: strPtr("08:00"),
		EndTime:   strPtr("16:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, days, r.Days)
	assert.Equal(t, "08:00", *r.StartTime)

	list, err := s.ListResources(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	n, err := s.CreateNotification(ctx, owner.ID, "New Supplier created: Acme")
	require.NoError(t, err)
	_, err = s.MarkNotificationRead(ctx, other.ID, n.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	read, err := s.MarkNotificationRead(ctx, owner.ID, n.ID)
	require.NoError(t, err)
	assert.True(t, read.Read)
}

func TestTasks_FilterAndJSONFallback(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	f := NewTestDataFactory(s)

	day := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	f.CreateTask(t, "t1", models.TaskDone, `{"Total": 100.5}`, day)
	f.CreateTask(t, "t2", models.TaskDone, `not json`, day.AddDate(0, 0, 1))
	f.CreateTask(t, "t3", models.TaskPending, `{"Total": 7}`, day)

	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	tasks, err := s.ListTasks(ctx, models.TaskFilter{Status: models.TaskDone, From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "t1", tasks[0].ID)

	f.CreateTask(t, "t4", models.TaskDone, `{"Total": 1}`, day.AddDate(-2, 0, 0))
	f.CreateTask(t, "t5", models.TaskDone, `{"Total": 1}`, day.AddDate(0, 1, 0))
	tasks, err = s.ListTasks(ctx, models.TaskFilter{Month: 3})
	require.NoError(t, err)
	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	assert.ElementsMatch(t, []string{"t1", "t2", "t3", "t4"}, ids)

	t2, err := s.GetTask(ctx, "t2")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(t2.Price))
	assert.JSONEq(t, `[{"item":"pipe"}]`, string(t2.BillOfMaterials))

	_, err = s.GetTask(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestContent_UpsertPageAndThoughts(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	f := NewTestDataFactory(s)

	_, err := s.GetPage(ctx, models.PageAboutUs)
	assert.ErrorIs(t, err, ErrNotFound)

	p, created, err := s.UpsertPage(ctx, models.PageAboutUs, models.ContentPageInput{Title: strPtr("About"), Content: strPtr("v1")})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "v1", p.Content)

	p, created, err = s.UpsertPage(ctx, models.PageAboutUs, models.ContentPageInput{Content: strPtr("v2")})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "About", p.Title)
	assert.Equal(t, "v2", p.Content)

	u := f.CreateUser(t, "writer@example.com", true)
	th, err := s.CreateThought(ctx, u.ID, "great service")
	require.NoError(t, err)
	assert.Equal(t, "Test User", th.Author)

	list, err := s.ListThoughts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	q, err := s.CreateQuery(ctx, models.ContactQuery{Name: "Bob", Email: "bob@example.com", Message: "hi"})
	require.NoError(t, err)
	got, err := s.GetQuery(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Message)
}

func TestCheckCtx_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &Storage{}
	_, err := s.GetUserByID(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
